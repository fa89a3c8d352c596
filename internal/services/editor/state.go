package editor

import (
	"errors"

	"github.com/phambaophuc/avatar-studio/internal/geometry"
)

type State int

const (
	StateIdle State = iota
	StateEditing
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	MinZoom        = 1.0
	DefaultMaxZoom = 3.0

	// DefaultMaxSourcePixels bounds the decoded size of a loaded source.
	DefaultMaxSourcePixels = 24_000_000
)

var (
	ErrNoCropArea      = errors.New("please select a crop area")
	ErrSaveInFlight    = errors.New("save already in progress")
	ErrInvalidState    = errors.New("operation not allowed in current state")
	ErrInvalidValue    = errors.New("invalid value")
	ErrInvalidCrop     = errors.New("crop area does not overlap the image")
	ErrDecodeFailed    = errors.New("failed to decode source image")
	ErrSourceTooLarge  = errors.New("source image has too many pixels")
	ErrExportFailed    = errors.New("failed to export image")
	ErrSessionNotFound = errors.New("editing session not found")
)

// TransformState is the user's current edit. Pan is the offset of the crop
// centre from the centre of the rotated bounding box, in pixels.
type TransformState struct {
	Rotation       float64        `json:"rotation"`
	Zoom           float64        `json:"zoom"`
	FlipHorizontal bool           `json:"flip_horizontal"`
	FlipVertical   bool           `json:"flip_vertical"`
	Pan            geometry.Point `json:"pan"`
}

func IdentityTransform() TransformState {
	return TransformState{Zoom: MinZoom}
}

// Snapshot is a read-only view of a session.
type Snapshot struct {
	ID          string         `json:"id"`
	State       State          `json:"state"`
	FileName    string         `json:"file_name,omitempty"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
	BoundingBox geometry.Size  `json:"bounding_box"`
	Transform   TransformState `json:"transform"`
	Crop        *geometry.Rect `json:"crop,omitempty"`
}
