package bert

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedVersion = errors.New("bert: unsupported version")
	ErrUnknownTag         = errors.New("bert: unknown tag")
	ErrTruncated          = errors.New("bert: truncated data")
	ErrMalformedFloat     = errors.New("bert: malformed float")
	ErrMalformedLength    = errors.New("bert: malformed length")
	ErrTooDeep            = errors.New("bert: nesting too deep")
	ErrMalformedEnvelope  = errors.New("bert: malformed envelope")
	ErrUnencodableTerm    = errors.New("bert: unencodable term")
	ErrBadIndex           = errors.New("bert: tuple index out of range")
)

// UnknownTagError reports a tag byte that has no reader, or that is not
// allowed where it appeared (Want names the expected kind in that case).
type UnknownTagError struct {
	Tag  byte
	Want string
}

func (e *UnknownTagError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("bert: unexpected tag %d, want %s", e.Tag, e.Want)
	}
	return fmt.Sprintf("bert: unknown tag %d", e.Tag)
}

func (e *UnknownTagError) Is(target error) bool {
	return target == ErrUnknownTag
}

// DecodeError wraps a decode failure with the stream offset at which it was
// detected.
type DecodeError struct {
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v (offset %d)", e.Err, e.Offset)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DecodeError) Unwrap() error {
	return e.Err
}
