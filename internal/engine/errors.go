package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidCursor is returned when a request cursor cannot be decoded or was
// minted for a different query context.
var ErrInvalidCursor = errors.New("invalid cursor")

// ValidationError reports a bad request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
