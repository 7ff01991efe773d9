// Package syncplugin defines the Sync Engine's enrichment seam (spec
// §4.3 step 2c): plugins may attach fields to an Entry (e.g. Graphite
// stack position) but must not mutate its identity or scope keys, and
// must not block on network.
package syncplugin

import (
	"context"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// Plugin enriches one Entry in place. Implementations must be safe to
// call from multiple goroutines and must not mutate e.ID, e.Repo, e.PR,
// e.Type, or e.Subtype.
type Plugin interface {
	Name() string
	Enrich(ctx context.Context, e *entry.Entry) error
}

// NoOp is the default Plugin: it never modifies an entry.
type NoOp struct{}

func (NoOp) Name() string { return "noop" }

func (NoOp) Enrich(context.Context, *entry.Entry) error { return nil }

// Chain runs plugins in order, stopping at the first error. A single
// plugin's failure does not roll back prior plugins' enrichment, matching
// the Sync Engine's per-PR failure policy of logging and continuing.
type Chain []Plugin

func (c Chain) Enrich(ctx context.Context, e *entry.Entry) error {
	for _, p := range c {
		if err := p.Enrich(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
