package tensor

import (
	"errors"
	"fmt"
)

// ErrMalformed is wrapped by every error caused by data that disagrees with
// its declared shape or framing.
var ErrMalformed = errors.New("tensor: malformed data")

var (
	ErrShapeMismatch = fmt.Errorf("%w: shape mismatch", ErrMalformed)
	ErrTruncated     = fmt.Errorf("%w: truncated data", ErrMalformed)
	ErrTrailingBytes = fmt.Errorf("%w: trailing bytes", ErrMalformed)
	ErrNegativeDim   = fmt.Errorf("%w: negative dimension", ErrMalformed)
)

var (
	ErrUnknownType     = errors.New("tensor: unknown data type")
	ErrUnsupportedType = errors.New("tensor: unsupported data type")
	ErrTypeMismatch    = errors.New("tensor: data type mismatch")
	ErrIndex           = errors.New("tensor: index out of range")
)
