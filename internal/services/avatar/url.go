package avatar

import (
	"net/url"
	"strings"
)

// ObjectNameFromPublicURL returns the object name of an avatar stored in the
// avatars bucket. Relative paths such as the default avatar and URLs outside
// the bucket (OAuth provider pictures) yield false.
func ObjectNameFromPublicURL(avatarURL string) (string, bool) {
	if !strings.HasPrefix(avatarURL, "http") {
		return "", false
	}
	if !strings.Contains(avatarURL, "/avatars/") {
		return "", false
	}

	u, err := url.Parse(avatarURL)
	if err != nil {
		return "", false
	}
	parts := strings.Split(u.Path, "/")
	name := parts[len(parts)-1]
	if name == "" {
		return "", false
	}
	return name, true
}
