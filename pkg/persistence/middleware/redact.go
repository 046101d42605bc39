package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type redactMiddleware struct {
	next     ports.RunStore
	patterns []*regexp.Regexp
}

// NewRedactMiddleware creates a middleware that masks every match of the
// patterns in task failure messages before a record is saved.
func NewRedactMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.RunStore) ports.RunStore {
		return &redactMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactMiddleware) Save(ctx context.Context, run *domain.RunRecord) error {
	if len(run.Errors) == 0 {
		return m.next.Save(ctx, run)
	}
	// Clone so the caller's record keeps the original messages.
	cloned := run.Clone()
	for id, msg := range cloned.Errors {
		for _, p := range m.patterns {
			msg = p.ReplaceAllString(msg, Mask)
		}
		cloned.Errors[id] = msg
	}
	return m.next.Save(ctx, cloned)
}

func (m *redactMiddleware) Load(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return m.next.Load(ctx, runID)
}

func (m *redactMiddleware) Delete(ctx context.Context, runID string) error {
	return m.next.Delete(ctx, runID)
}

func (m *redactMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
