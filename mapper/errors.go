package mapper

import (
	"errors"
	"fmt"
)

var (
	// ErrArgument malformed or incomplete mapping configuration; fatal to
	// the construction call, never retried
	ErrArgument = errors.New("invalid mapping configuration")
	// ErrInvalidRequest a request against mappers in an invalid state
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnmappedColumn column looked up in the reverse map was never mapped
	ErrUnmappedColumn = errors.New("column is not mapped")
	// ErrSkipConfigure returned by a before-configure hook to defer a
	// mapper to a later pass without failing it
	ErrSkipConfigure = errors.New("skip configure")
)

// ConfigureFailedError poisons an inheritance chain: once a mapper fails
// during construction or phase-two initialization, every later
// configuration pass touching it re-raises this error chaining the
// original cause.
type ConfigureFailedError struct {
	Mapper *Mapper
	Cause  error
}

func (e *ConfigureFailedError) Error() string {
	return fmt.Sprintf(
		"one or more mappers failed to initialize - can't proceed with initialization of other mappers. Triggering mapper: %s. Original exception was: %v",
		e.Mapper, e.Cause)
}

func (e *ConfigureFailedError) Unwrap() error { return e.Cause }

// Is matches ErrInvalidRequest so callers can classify the failure without
// knowing the concrete type.
func (e *ConfigureFailedError) Is(target error) bool { return target == ErrInvalidRequest }
