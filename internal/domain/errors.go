package domain

import (
	"errors"
	"fmt"
)

// Sentinel classes for errors.Is checks.
var (
	ErrDataAvailability = errors.New("data availability")
	ErrExternalService  = errors.New("external service")
	ErrDegenerateInput  = errors.New("degenerate input")
)

// DataAvailabilityError reports a time window with no matching radar
// acquisitions. It is fatal to the run.
type DataAvailabilityError struct {
	Window       string // "before" or "after"
	Polarization string
	Orbit        string
}

func (e *DataAvailabilityError) Error() string {
	return fmt.Sprintf("no %s-event radar acquisitions for polarization %s, orbit %s over the area of interest",
		e.Window, e.Polarization, e.Orbit)
}

func (e *DataAvailabilityError) Is(target error) bool { return target == ErrDataAvailability }

// ExternalServiceError wraps a failure of the raster-processing backend.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("raster backend %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }

// DegenerateInputError rejects inputs that cannot produce a meaningful
// analysis. It is raised before the backend is contacted.
type DegenerateInputError struct {
	Field  string
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *DegenerateInputError) Is(target error) bool { return target == ErrDegenerateInput }

// Degenerate is shorthand for building a DegenerateInputError.
func Degenerate(field, format string, args ...any) error {
	return &DegenerateInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
