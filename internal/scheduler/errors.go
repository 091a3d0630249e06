package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrJobFailed — job завершился с ошибкой.
	ErrJobFailed = errors.New("job failed")

	// ErrJobPanicked — job запаниковал.
	ErrJobPanicked = errors.New("job panicked")

	// ErrJobNotPending — job уже запускался или подан повторно в том же батче.
	ErrJobNotPending = errors.New("job is not pending")
)
