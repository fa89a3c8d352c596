package models

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypeWebP = "image/webp"
)

// OutputImage is an encoded export produced by the editor.
type OutputImage struct {
	Bytes    []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	FileName string `json:"file_name"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// AvatarResult describes a stored, normalized avatar.
type AvatarResult struct {
	UserID    string `json:"user_id"`
	AvatarURL string `json:"avatar_url"`
	Key       string `json:"key,omitempty"`
	Size      int    `json:"size,omitempty"`
}
