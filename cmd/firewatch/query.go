package main

import (
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/outfitter-dev/firewatch-sub001/internal/actionable"
	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/store"
	"github.com/outfitter-dev/firewatch-sub001/internal/worklist"
)

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntSliceFlag{Name: "pr", Usage: "restrict to these PR numbers"},
		&cli.StringSliceFlag{Name: "type", Usage: "comment|review|commit|ci|event"},
		&cli.StringSliceFlag{Name: "author", Usage: "restrict to these authors"},
		&cli.StringSliceFlag{Name: "exclude-author", Usage: "drop these authors"},
		&cli.BoolFlag{Name: "exclude-bots", Usage: "drop authors matching the configured bot patterns"},
		&cli.StringFlag{Name: "label", Usage: "substring match against pr_labels"},
		&cli.StringSliceFlag{Name: "state", Usage: "open|draft|closed|merged"},
		&cli.StringFlag{Name: "since", Usage: "RFC3339 timestamp lower bound"},
		&cli.StringFlag{Name: "before", Usage: "RFC3339 timestamp upper bound"},
		&cli.BoolFlag{Name: "exclude-stale", Usage: "drop entries of closed and merged PRs"},
		&cli.BoolFlag{Name: "orphaned", Usage: "with --exclude-stale: keep only closed/merged PRs that still have unresolved review threads"},
		&cli.IntFlag{Name: "limit", Value: 100},
		&cli.IntFlag{Name: "offset", Value: 0},
		&cli.BoolFlag{Name: "no-sync", Usage: "fail instead of syncing when the cache is stale"},
	}
}

// filterFrom builds a store.Filter from the shared query flags (spec
// §4.4). Each flag maps onto exactly one Filter field; the SQL builder
// itself lives in internal/store.
func filterFrom(c *cli.Context, repo string, cfg *app) store.Filter {
	f := store.Filter{
		Repo:           repo,
		Author:         c.StringSlice("author"),
		ExcludeAuthors: c.StringSlice("exclude-author"),
		ExcludeBots:    c.Bool("exclude-bots"),
		BotPatterns:    cfg.cfg.BotPatterns(),
		Label:          c.String("label"),
		ExcludeStale:   c.Bool("exclude-stale"),
		Orphaned:       c.Bool("orphaned"),
	}

	for _, pr := range c.IntSlice("pr") {
		f.PR = append(f.PR, pr)
	}
	for _, t := range c.StringSlice("type") {
		f.Type = append(f.Type, entry.Type(t))
	}
	for _, s := range c.StringSlice("state") {
		f.States = append(f.States, entry.PRState(s))
	}
	if since := c.String("since"); since != "" {
		if ts, err := time.Parse(time.RFC3339, since); err == nil {
			f.Since = &ts
		}
	}
	if before := c.String("before"); before != "" {
		if ts, err := time.Parse(time.RFC3339, before); err == nil {
			f.Before = &ts
		}
	}
	return f
}

// ensureFresh applies the stale-threshold gate (spec §4.3 EnsureFresh)
// before any read command, unless --no-sync demands a cache-only answer.
func ensureFresh(c *cli.Context, a *app) error {
	threshold, err := a.cfg.StaleThresholdDuration()
	if err != nil {
		return err
	}
	noSync := c.Bool("no-sync")
	for _, scope := range []entry.Scope{entry.ScopeOpen, entry.ScopeClosed} {
		if err := a.engine.EnsureFresh(c.Context, a.repo, scope, threshold, noSync); err != nil {
			return err
		}
	}
	return nil
}

func listCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "query stored entries",
		Flags: queryFlags(),
		Action: func(c *cli.Context) error {
			if err := ensureFresh(c, a); err != nil {
				return err
			}
			f := filterFrom(c, a.repo, a)
			entries, err := a.st.QueryEntries(c.Context, f, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return err
			}
			return emitLines(entries)
		},
	}
}

func worklistCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "worklist",
		Usage: "aggregate entries into one row per PR (spec worklist builder)",
		Flags: queryFlags(),
		Action: func(c *cli.Context) error {
			if err := ensureFresh(c, a); err != nil {
				return err
			}
			f := filterFrom(c, a.repo, a)
			f.ExcludeStale = false // --exclude-stale is ignored: the worklist keeps rows for closed/merged PRs
			entries, err := a.st.QueryEntries(c.Context, f, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return err
			}
			return emitLines(worklist.Build(entries))
		},
	}
}

func actionableCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:  "actionable",
		Usage: "derive the actionable worklist (spec actionable derivation)",
		Flags: append(queryFlags(),
			&cli.StringFlag{Name: "perspective", Usage: "mine|reviews"},
			&cli.BoolFlag{Name: "commit-implies-read", Usage: "treat a later commit as read acknowledgement of prior comments"},
		),
		Action: func(c *cli.Context) error {
			if err := ensureFresh(c, a); err != nil {
				return err
			}
			f := filterFrom(c, a.repo, a)
			entries, err := a.st.QueryEntries(c.Context, f, c.Int("limit"), c.Int("offset"))
			if err != nil {
				return err
			}

			acked, err := a.st.AckedIDsFor(c.Context, a.repo)
			if err != nil {
				return err
			}

			commitImpliesRead := c.Bool("commit-implies-read") || a.cfg.Feedback.CommitImpliesRead

			items := actionable.Derive(actionable.Input{
				Entries:           entries,
				AckedIDs:          acked,
				Username:          a.cfg.User.GitHubUsername,
				CommitImpliesRead: commitImpliesRead,
				BotPatterns:       a.cfg.BotPatterns(),
				Now:               time.Now(),
			})

			perspective := actionable.Perspective(strings.ToLower(c.String("perspective")))
			items = actionable.FilterPerspective(items, a.cfg.User.GitHubUsername, perspective)

			if a.format == "text" {
				renderActionableText(items)
				return nil
			}
			return emitLines(items)
		},
	}
}
