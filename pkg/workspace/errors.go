package workspace

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// ConfigError is a configuration problem located in a project (and optionally a task).
// Kind is one of the domain sentinel errors.
type ConfigError struct {
	Project string
	Task    string
	Kind    error
	Msg     string
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("project ")
	sb.WriteString(projectLabel(e.Project))
	if e.Task != "" {
		fmt.Fprintf(&sb, ", task %q", e.Task)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Kind.Error())
	if e.Msg != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Msg)
	}
	return sb.String()
}

func (e *ConfigError) Unwrap() error { return e.Kind }

// AggregateError collects every configuration error found in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d configuration errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// Unwrap exposes the individual errors to errors.Is / errors.As.
func (e *AggregateError) Unwrap() []error { return e.Errors }

// ConfigErrors returns the individual errors if err is an AggregateError.
// Otherwise returns nil.
func ConfigErrors(err error) []error {
	if aggr, ok := err.(*AggregateError); ok {
		return aggr.Errors
	}
	return nil
}

func projectLabel(path string) string {
	if path == domain.RootPath {
		return "(root)"
	}
	return fmt.Sprintf("%q", path)
}
