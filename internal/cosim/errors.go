package cosim

import (
	"errors"
	"fmt"
)

var (
	ErrNonIntegerRatio   = errors.New("cosim: an integer timestep_ratio must be specified")
	ErrNonPositiveRatio  = errors.New("cosim: timestep_ratio must be at least 1")
	ErrUnsupportedMapper = errors.New("cosim: dynamic coupled solver is only compatible with the coupling_geometry mapper")
	ErrMissingWrapper    = errors.New("cosim: both origin and destination solver wrappers are required")
)

// ConfigError reports an invalid coupled solver option. It is raised before
// any solver is touched.
type ConfigError struct {
	Option  string
	Value   any
	Wrapped error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %v", e.Option, e.Value, e.Wrapped)
}

func (e *ConfigError) Unwrap() error { return e.Wrapped }

// MissingDependencyError reports a named interface sub model part that does
// not exist in a domain's model.
type MissingDependencyError struct {
	Domain    Domain
	ModelPart string
	Wrapped   error
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("cosim: %s interface model part %q: %v", e.Domain, e.ModelPart, e.Wrapped)
}

func (e *MissingDependencyError) Unwrap() error { return e.Wrapped }
