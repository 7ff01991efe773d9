// Package worklist is Firewatch's Worklist Builder (spec §4.5): a
// deterministic per-PR aggregation over raw entries, ordered by most
// recent activity.
package worklist

import (
	"sort"
	"strings"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// Counts totals entries by type for one PR.
type Counts struct {
	Comments int `json:"comments"`
	Reviews  int `json:"reviews"`
	Commits  int `json:"commits"`
	CI       int `json:"ci"`
	Events   int `json:"events"`
}

// ReviewStates totals review entries by their normalised state.
type ReviewStates struct {
	Approved         int `json:"approved"`
	ChangesRequested int `json:"changes_requested"`
	Commented        int `json:"commented"`
	Dismissed        int `json:"dismissed"`
}

// Entry is one PR's aggregated worklist row.
type Entry struct {
	PR             int                `json:"pr"`
	PRState        entry.PRState      `json:"pr_state"`
	PRTitle        string             `json:"pr_title"`
	PRAuthor       string             `json:"pr_author"`
	PRBranch       string             `json:"pr_branch"`
	Counts         Counts             `json:"counts"`
	ReviewStates   ReviewStates       `json:"review_states"`
	LastActivityAt int64              `json:"last_activity_at"` // unix nanos; surfaces format as needed
	Graphite       *entry.GraphiteInfo `json:"graphite,omitempty"`
}

// Build aggregates raw entries into one Entry per distinct PR observed,
// ordered by last_activity_at DESC then pr ASC (spec §4.5). Empty input
// yields empty output.
func Build(entries []entry.Entry) []Entry {
	byPR := make(map[int]*Entry)
	order := make([]int, 0)

	for _, e := range entries {
		w, ok := byPR[e.PR]
		if !ok {
			w = &Entry{PR: e.PR}
			byPR[e.PR] = w
			order = append(order, e.PR)
		}

		switch e.Type {
		case entry.TypeComment:
			w.Counts.Comments++
		case entry.TypeReview:
			w.Counts.Reviews++
			switch strings.ToLower(e.State) {
			case string(entry.ReviewApproved):
				w.ReviewStates.Approved++
			case string(entry.ReviewChangesRequested):
				w.ReviewStates.ChangesRequested++
			case string(entry.ReviewDismissed):
				w.ReviewStates.Dismissed++
			default:
				w.ReviewStates.Commented++
			}
		case entry.TypeCommit:
			w.Counts.Commits++
		case entry.TypeCI:
			w.Counts.CI++
		case entry.TypeEvent:
			w.Counts.Events++
		}

		ts := e.CreatedAt.UnixNano()
		if ts > w.LastActivityAt {
			w.LastActivityAt = ts
			w.PRState = e.PRState
			w.PRTitle = e.PRTitle
			w.PRAuthor = e.PRAuthor
			w.PRBranch = e.PRBranch
		}

		// Graphite stack metadata is identical across a PR's entries by
		// invariant (spec §4.5); take the first one seen.
		if w.Graphite == nil && e.Graphite != nil {
			w.Graphite = e.Graphite
		}
	}

	out := make([]Entry, 0, len(order))
	for _, pr := range order {
		out = append(out, *byPR[pr])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastActivityAt != out[j].LastActivityAt {
			return out[i].LastActivityAt > out[j].LastActivityAt
		}
		return out[i].PR < out[j].PR
	})

	return out
}
