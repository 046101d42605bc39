package plan

import (
	"fmt"
	"strings"

	"github.com/aretw0/canopy/pkg/domain"
)

// GraphError wraps deterministic graph validation failures.
// Kind is one of the domain sentinel errors.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func unknownf(format string, args ...any) error {
	return &GraphError{Kind: domain.ErrUnknownTask, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []domain.TaskID) error {
	names := make([]string, len(path))
	for i, id := range path {
		names[i] = id.String()
	}
	return &GraphError{Kind: domain.ErrCycle, Msg: strings.Join(names, " -> ")}
}
