package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/sync"
)

func syncCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "bring the local store up to date with GitHub",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "scope", Value: "all", Usage: "open|closed|all"},
			&cli.BoolFlag{Name: "full", Usage: "ignore the stored checkpoint and resync from scratch"},
		},
		Action: func(c *cli.Context) error {
			mode := sync.ModeIncremental
			if c.Bool("full") {
				mode = sync.ModeFull
			}

			scopes, err := scopesFor(c.String("scope"))
			if err != nil {
				return err
			}

			type scopeResult struct {
				Scope entry.Scope  `json:"scope"`
				Result *sync.Result `json:"result,omitempty"`
				Error  string       `json:"error,omitempty"`
			}

			var results []scopeResult
			failed := 0
			for _, scope := range scopes {
				res, err := a.engine.Run(c.Context, a.repo, scope, mode)
				if err != nil {
					failed++
					results = append(results, scopeResult{Scope: scope, Error: err.Error()})
					continue
				}
				results = append(results, scopeResult{Scope: scope, Result: res})
			}

			if err := emit(map[string]interface{}{
				"ok": failed == 0, "repo": a.repo, "scopes": results,
			}); err != nil {
				return err
			}

			if failed > 0 && failed < len(scopes) {
				return partialFailure("sync failed for %d of %d scopes", failed, len(scopes))
			}
			if failed == len(scopes) {
				return fmt.Errorf("sync failed for all %d scopes", failed)
			}
			return nil
		},
	}
}

func scopesFor(s string) ([]entry.Scope, error) {
	switch s {
	case "open":
		return []entry.Scope{entry.ScopeOpen}, nil
	case "closed":
		return []entry.Scope{entry.ScopeClosed}, nil
	case "all", "":
		return []entry.Scope{entry.ScopeOpen, entry.ScopeClosed}, nil
	default:
		return nil, fmt.Errorf("unknown scope %q (want open|closed|all)", s)
	}
}
