package itfile

import (
	"fmt"
)

// ParseError describes a malformed input fragment.
// Offset is a byte offset inside the decoded data.
type ParseError struct {
	Message string

	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s (offset=%d)", e.Message, e.Offset)
}
