package posts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the post service. Handlers translate these into HTTP
// statuses; anything else is an upstream failure.
var (
	ErrNotFound     = errors.New("post not found")
	ErrForbidden    = errors.New("caller is not the post author")
	ErrSlugConflict = errors.New("could not derive a unique slug")
)

// ValidationError reports a malformed or out-of-bounds input field. It is
// always detected before any store mutation is attempted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
