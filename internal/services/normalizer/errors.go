package normalizer

import (
	"errors"
	"fmt"
)

type Reason string

const (
	ReasonDecodeFailed Reason = "decode_failed"
	ReasonTooLarge     Reason = "too_large"
	ReasonEncodeFailed Reason = "encode_failed"
)

// RejectionError is returned for any input the normalizer refuses.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(reason Reason, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason, true
	}
	return "", false
}
