// Package sync is Firewatch's Sync Engine (spec §4.3): it brings the
// Store's view of a (repo, scope) partition up to date by driving the
// GitHub Client, normalising each child collection to entries, running
// the enrichment plugin chain, and upserting everything in batched
// per-PR transactions.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
	"github.com/outfitter-dev/firewatch-sub001/internal/logging"
	"github.com/outfitter-dev/firewatch-sub001/internal/store"
	"github.com/outfitter-dev/firewatch-sub001/internal/syncplugin"
)

// Mode selects whether Run starts from scratch or resumes from the
// stored checkpoint.
type Mode string

const (
	ModeFull        Mode = "full"
	ModeIncremental Mode = "incremental"
)

// scopeStates maps a Scope to the PR state set the GitHub Client should
// list, per spec §3: "open" covers {open, draft}, "closed" covers
// {closed, merged}.
var scopeStates = map[entry.Scope][]string{
	entry.ScopeOpen:   {"OPEN"},
	entry.ScopeClosed: {"CLOSED", "MERGED"},
}

// GitHubClient is the subset of ghclient.Client the Sync Engine drives.
// Narrowing to an interface lets tests substitute a fake transport.
type GitHubClient interface {
	ListPullRequests(ctx context.Context, owner, name string, states []string, after string) (*ghclient.PRPage, error)
	FetchPRActivity(ctx context.Context, owner, name string, pr int) (*ghclient.PRActivity, error)
}

// Engine runs sync passes against one Store using one GitHub Client.
type Engine struct {
	Store   *store.Store
	Client  GitHubClient
	Plugins syncplugin.Chain
	Log     *slog.Logger
}

// New builds an Engine. A nil logger falls back to a disabled logger.
func New(st *store.Store, client GitHubClient, plugins syncplugin.Chain, log *slog.Logger) *Engine {
	if log == nil {
		log = logging.New(slog.LevelError + 1)
	}
	return &Engine{Store: st, Client: client, Plugins: plugins, Log: log}
}

// Result summarises one Run call.
type Result struct {
	PRsSeen      int
	PRsUpdated   int
	PRsFailed    int
	EntriesCount int
}

// Run executes one sync pass over (repo, scope) in the given mode.
func (e *Engine) Run(ctx context.Context, repoSlug string, scope entry.Scope, mode Mode) (*Result, error) {
	owner, name, err := ghclient.ParseRepoSlug(repoSlug)
	if err != nil {
		return nil, err
	}

	log := logging.WithScope(e.Log, repoSlug, string(scope))

	since := time.Time{}
	cursor := ""
	if mode == ModeIncremental {
		meta, merr := e.Store.GetSyncMeta(ctx, repoSlug, scope)
		if merr != nil {
			return nil, merr
		}
		if meta != nil {
			since = meta.LastSync
			cursor = meta.Cursor
		}
	}

	states := scopeStates[scope]
	result := &Result{}
	now := time.Now()

	for {
		page, perr := e.Client.ListPullRequests(ctx, owner, name, states, cursor)
		if perr != nil {
			return result, perr
		}

		for _, pr := range page.PRs {
			result.PRsSeen++
			if mode == ModeIncremental && !pr.UpdatedAt.After(since) {
				continue
			}

			if err := e.syncOnePR(ctx, repoSlug, owner, name, pr, now); err != nil {
				result.PRsFailed++
				log.Error("sync pr failed", "pr", pr.Number, "error", err)
				continue
			}
			result.PRsUpdated++
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	if result.PRsFailed == 0 {
		cursor = ""
	}
	if err := e.Store.SetSyncMeta(ctx, repoSlug, scope, entry.SyncMeta{
		Repo:     repoSlug,
		Scope:    scope,
		LastSync: now,
		PRCount:  result.PRsSeen,
		Cursor:   cursor,
	}); err != nil {
		return result, err
	}

	return result, nil
}

// syncOnePR fetches one PR's metadata and child collections, enriches
// each resulting entry through the plugin chain, and upserts everything
// in a single transaction (steps a-d, spec §4.3).
func (e *Engine) syncOnePR(ctx context.Context, repoSlug, owner, name string, pr ghclient.PRSummary, capturedAt time.Time) error {
	meta := entry.PRMeta{
		Repo:   repoSlug,
		PR:     pr.Number,
		State:  prState(pr),
		Title:  pr.Title,
		Author: pr.Author,
		Branch: pr.Branch,
		Labels: pr.Labels,
		Draft:  pr.Draft,
		NodeID: pr.NodeID,
		URL:    pr.URL,
	}

	activity, err := e.Client.FetchPRActivity(ctx, owner, name, pr.Number)
	if err != nil {
		return fmt.Errorf("fetch activity for pr %d: %w", pr.Number, err)
	}

	entries := normalize(repoSlug, meta, activity, capturedAt)

	for i := range entries {
		if err := e.Plugins.Enrich(ctx, &entries[i]); err != nil {
			e.Log.Warn("plugin enrichment failed", "pr", pr.Number, "entry", entries[i].ID, "error", err)
		}
	}

	return e.Store.UpsertPRWithEntries(ctx, meta, entries)
}

func prState(pr ghclient.PRSummary) entry.PRState {
	switch pr.State {
	case "MERGED":
		return entry.PRStateMerged
	case "CLOSED":
		return entry.PRStateClosed
	default:
		if pr.Draft {
			return entry.PRStateDraft
		}
		return entry.PRStateOpen
	}
}

// EnsureFresh implements the stale-threshold gate: it re-syncs (repo,
// scope) incrementally if the cached checkpoint is older than
// staleThreshold, or raises CacheMissError if noSync is set and no
// checkpoint exists at all.
func (e *Engine) EnsureFresh(ctx context.Context, repoSlug string, scope entry.Scope, staleThreshold time.Duration, noSync bool) error {
	meta, err := e.Store.GetSyncMeta(ctx, repoSlug, scope)
	if err != nil {
		return err
	}

	if noSync {
		if meta == nil {
			return &ferrors.CacheMissError{Repo: repoSlug, Scope: string(scope)}
		}
		return nil
	}

	if meta == nil || time.Since(meta.LastSync) > staleThreshold {
		_, err := e.Run(ctx, repoSlug, scope, ModeIncremental)
		return err
	}
	return nil
}
