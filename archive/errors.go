package archive

import "errors"

var (
	ErrMalformedArchive = errors.New("malformed archive")
	ErrEntryTooLarge    = errors.New("entry too large")
	ErrFinalized        = errors.New("archive writer already finalized")
)
