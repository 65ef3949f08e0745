package quest

import (
	"errors"
	"fmt"
)

var (
	// ErrArgument is matched by every *ArgumentError.
	ErrArgument = errors.New("quest: invalid argument")

	// ErrInvalidState is returned by Build when a required field was not staged.
	ErrInvalidState = errors.New("quest: invalid builder state")

	// ErrMisusedMode is returned when a synchronous finalization is called on a
	// quest that only carries asynchronous handlers.
	ErrMisusedMode = errors.New("quest: synchronous method called on an asynchronous-only object")
)

// ArgumentError reports a required argument that was nil.
type ArgumentError struct {
	Param string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("quest: argument %q must not be nil", e.Param)
}

func (e *ArgumentError) Is(target error) bool {
	return target == ErrArgument
}

func newArgumentError(param string) *ArgumentError {
	return &ArgumentError{Param: param}
}

// PanicError carries a value recovered from a panicking user function.
//
// The error handler receives a *PanicError; the caller still sees the
// original panic, which is re-raised once the handler has run.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("quest: panic in user function: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func missingField(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, msg)
}
