package utils

import "regexp"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// IsValidUserID reports whether id is safe to use in object keys and URLs.
func IsValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}
