package encoder

import "errors"

var (
	ErrNoCodec      = errors.New("no codec registered for format")
	ErrEmptyImage   = errors.New("image has no pixels")
	ErrEmptyEncoded = errors.New("codec produced no bytes")
)
