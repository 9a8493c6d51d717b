// Package schedule resolves which time windows are open on a calendar date.
//
// Three configuration sources are consulted in strict precedence order:
// Closure (highest), DateOverride, WeeklyTemplate (lowest). Exactly one
// source determines a date's windows; sources are never merged.
package schedule

import (
	"context"
	"fmt"
	"time"

	"slotwise/internal/model"
)

// ClosureSource lists closures covering a date.
type ClosureSource interface {
	ClosuresOn(ctx context.Context, date model.Date) ([]model.Closure, error)
}

// OverrideSource returns the override for a date, or nil when absent.
type OverrideSource interface {
	OverrideFor(ctx context.Context, date model.Date) (*model.DateOverride, error)
}

// TemplateSource returns the recurring template windows for a weekday.
type TemplateSource interface {
	TemplateFor(ctx context.Context, day time.Weekday) ([]model.TimeRange, error)
}

// Source identifies which configuration layer decided a date's windows.
type Source string

const (
	SourceClosure  Source = "closure"
	SourceOverride Source = "override"
	SourceTemplate Source = "template"
)

// Resolver applies the precedence chain. It is stateless; every Resolve
// call reads the sources fresh.
type Resolver struct {
	chain []layer
}

type layer struct {
	source  Source
	resolve func(ctx context.Context, date model.Date) ([]model.TimeRange, bool, error)
}

// NewResolver builds the ordered resolution chain. Adding a precedence
// level is an insertion into the chain, not a rewrite.
func NewResolver(closures ClosureSource, overrides OverrideSource, template TemplateSource) *Resolver {
	return &Resolver{
		chain: []layer{
			{
				source: SourceClosure,
				resolve: func(ctx context.Context, date model.Date) ([]model.TimeRange, bool, error) {
					covering, err := closures.ClosuresOn(ctx, date)
					if err != nil {
						return nil, false, fmt.Errorf("closures for %s: %w", date, err)
					}
					for _, c := range covering {
						if c.Covers(date) {
							return nil, true, nil
						}
					}
					return nil, false, nil
				},
			},
			{
				source: SourceOverride,
				resolve: func(ctx context.Context, date model.Date) ([]model.TimeRange, bool, error) {
					o, err := overrides.OverrideFor(ctx, date)
					if err != nil {
						return nil, false, fmt.Errorf("override for %s: %w", date, err)
					}
					if o == nil {
						return nil, false, nil
					}
					// An override with zero windows means closed by
					// administrative choice, not "fall through".
					return o.Windows, true, nil
				},
			},
			{
				source: SourceTemplate,
				resolve: func(ctx context.Context, date model.Date) ([]model.TimeRange, bool, error) {
					windows, err := template.TemplateFor(ctx, date.Weekday())
					if err != nil {
						return nil, false, fmt.Errorf("template for %s: %w", date.Weekday(), err)
					}
					return windows, true, nil
				},
			},
		},
	}
}

// Resolve returns the ordered open windows for a date and the source that
// decided them. An empty window list is a valid "no availability" answer,
// never an error.
func (r *Resolver) Resolve(ctx context.Context, date model.Date) ([]model.TimeRange, Source, error) {
	for _, l := range r.chain {
		windows, decided, err := l.resolve(ctx, date)
		if err != nil {
			return nil, "", err
		}
		if decided {
			return windows, l.source, nil
		}
	}
	// The template layer always decides; this is unreachable with the
	// default chain but keeps custom chains honest.
	return nil, SourceTemplate, nil
}
