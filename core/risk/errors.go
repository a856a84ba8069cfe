package risk

import "errors"

var (
	ErrNotProcessed    = errors.New("data not processed yet")
	ErrStudentNotFound = errors.New("student not found")
)

// ProcessingError is returned when a pipeline run fails. The session in place is left untouched.
type ProcessingError struct {
	Err error
}

func (e *ProcessingError) Error() string { return e.Err.Error() }

func (e *ProcessingError) Unwrap() error { return e.Err }

func processingError(err error) error {
	if err == nil {
		return nil
	}
	return &ProcessingError{Err: err}
}
