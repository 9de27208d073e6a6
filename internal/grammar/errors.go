package grammar

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout reports that the provider did not answer within the
// configured deadline.
var ErrUpstreamTimeout = errors.New("grammar upstream timed out")

// UpstreamError carries the provider's status and message without exposing
// its wire shape to callers.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("grammar upstream error (%d): %s", e.Status, e.Message)
}

// FormatError reports a provider payload that parsed but did not contain the
// two required suggestion fields.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("grammar upstream format error: %s", e.Reason)
}
