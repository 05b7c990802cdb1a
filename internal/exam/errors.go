package exam

import (
	"errors"
	"fmt"
)

// ErrNotFound covers unknown exam/sheet/response/session ids.
var ErrNotFound = errors.New("not found")

// ErrBatchActive is returned when a batch start races an in-flight session
// for the same exam.
var ErrBatchActive = errors.New("batch grading already in progress")

// ValidationError marks bad input shape. The operation never started.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// InsufficientDataError is returned when training or calibration is invoked
// below the minimum sample count. Nothing partial is persisted.
type InsufficientDataError struct {
	Need int
	Got  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: need %d samples, got %d", e.Need, e.Got)
}
