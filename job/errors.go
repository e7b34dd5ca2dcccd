package job

import "errors"

var (
	ErrInvalidRules      = errors.New("invalid rules")
	ErrTooManyCandidates = errors.New("too many candidate entries")

	ErrJobNotFound       = errors.New("job not found")
	ErrJobExists         = errors.New("job already submitted")
	ErrJobNotCancellable = errors.New("job cannot be cancelled")
	ErrWorkerStopped     = errors.New("worker stopped")
)
