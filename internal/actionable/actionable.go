// Package actionable is Firewatch's Actionable Derivation (spec §4.6): a
// deterministic projection from entries to per-PR categorised work items
// (unaddressed feedback, changes requested, awaiting review, stale), with
// bot filtering, self-comment suppression, ack overlay, and
// resolution-signal precedence.
package actionable

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// Category is one of the four classifications spec §4.6 defines, tried in
// priority order: the first match wins for a given PR.
type Category string

const (
	CategoryUnaddressed      Category = "unaddressed"
	CategoryChangesRequested Category = "changes_requested"
	CategoryAwaitingReview   Category = "awaiting_review"
	CategoryStale            Category = "stale"
)

// Perspective narrows items to those relevant to one user (spec §4.6,
// applied after categorisation).
type Perspective string

const (
	PerspectiveAll     Perspective = ""
	PerspectiveMine    Perspective = "mine"
	PerspectiveReviews Perspective = "reviews"
)

// FilterPerspective applies the mine/reviews perspective filter: "mine"
// keeps items the configured user authored; "reviews" keeps items authored
// by someone else (PRs the user is expected to review).
func FilterPerspective(items []Item, username string, perspective Perspective) []Item {
	if perspective == PerspectiveAll || username == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		mine := strings.EqualFold(it.PRAuthor, username)
		if (perspective == PerspectiveMine) == mine {
			out = append(out, it)
		}
	}
	return out
}

// StaleDays is the default threshold for the Stale category (spec §4.6).
const StaleDays = 3

// Input bundles the entries and overlay data Derive needs.
type Input struct {
	Entries []entry.Entry

	// AckedIDs is the local ack overlay: comment ids treated as addressed.
	AckedIDs map[string]bool

	// Username is the configured operator, used for the thumbs-up and
	// commit-implies-read checks. FilterPerspective takes its own username.
	Username string

	// CommitImpliesRead enables the commit-authored-after-comment
	// addressed signal for issue comments.
	CommitImpliesRead bool

	// PRStates overrides which PR states are eligible for the unaddressed
	// check; nil means the default {open, draft}. Used by bulk operations
	// such as `close --feedback` on a closed PR.
	PRStates []entry.PRState

	// BotPatterns excludes matching authors from the unaddressed list.
	BotPatterns []string

	// Now anchors the Stale category's age comparison; zero means
	// time.Now().
	Now time.Time
}

// Item is one classified work item.
type Item struct {
	PR          int                `json:"pr"`
	PRTitle     string             `json:"pr_title"`
	PRAuthor    string             `json:"pr_author"`
	PRBranch    string             `json:"pr_branch"`
	PRState     entry.PRState      `json:"pr_state"`
	Category    Category           `json:"category"`
	Description string             `json:"description"`
	Count       int                `json:"count"`
	Graphite    *entry.GraphiteInfo `json:"graphite,omitempty"`
}

type prAgg struct {
	meta           entry.Entry // carries pr_state/title/author/branch from the latest entry
	lastActivityAt time.Time
	reviewStates   struct {
		approved, changesRequested, commented, dismissed int
	}
	unaddressed []entry.Entry
	graphite    *entry.GraphiteInfo
}

func defaultEligibleStates(override []entry.PRState) map[entry.PRState]bool {
	states := override
	if len(states) == 0 {
		states = []entry.PRState{entry.PRStateOpen, entry.PRStateDraft}
	}
	m := make(map[entry.PRState]bool, len(states))
	for _, s := range states {
		m[s] = true
	}
	return m
}

// Derive classifies entries into per-PR actionable items, applying the
// priority order from spec §4.6: unaddressed > changes_requested >
// awaiting_review > stale.
func Derive(in Input) []Item {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	eligible := defaultEligibleStates(in.PRStates)
	botPatterns := compileBotPatterns(in.BotPatterns)

	byPR := make(map[int]*prAgg)
	order := make([]int, 0)
	commitsByPR := make(map[int][]entry.Entry)

	for _, e := range in.Entries {
		agg, ok := byPR[e.PR]
		if !ok {
			agg = &prAgg{}
			byPR[e.PR] = agg
			order = append(order, e.PR)
		}
		if e.CreatedAt.After(agg.lastActivityAt) {
			agg.lastActivityAt = e.CreatedAt
			agg.meta = e
		}
		if agg.graphite == nil && e.Graphite != nil {
			agg.graphite = e.Graphite
		}

		switch e.Type {
		case entry.TypeReview:
			switch strings.ToLower(e.State) {
			case string(entry.ReviewApproved):
				agg.reviewStates.approved++
			case string(entry.ReviewChangesRequested):
				agg.reviewStates.changesRequested++
			case string(entry.ReviewDismissed):
				agg.reviewStates.dismissed++
			default:
				agg.reviewStates.commented++
			}
		case entry.TypeCommit:
			commitsByPR[e.PR] = append(commitsByPR[e.PR], e)
		}
	}

	// Second pass: unaddressed comments, now that every PR's commits are
	// known (commit-implies-read needs the full commit set).
	for _, e := range in.Entries {
		if e.Type != entry.TypeComment {
			continue
		}
		if !eligible[e.PRState] {
			continue
		}
		if e.IsSelfComment() {
			continue
		}
		if matchesAnyBotPattern(e.Author, botPatterns) {
			continue
		}
		if isUnaddressed(e, in, commitsByPR[e.PR]) {
			byPR[e.PR].unaddressed = append(byPR[e.PR].unaddressed, e)
		}
	}

	items := make([]Item, 0, len(order))
	for _, pr := range order {
		agg := byPR[pr]
		item := classify(pr, agg, eligible, now)
		if item != nil {
			items = append(items, *item)
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].PR < items[j].PR })
	return items
}

// isUnaddressed implements the per-comment addressed/unaddressed rules of
// spec §4.6, picking the review_comment or issue_comment branch by
// subtype.
func isUnaddressed(c entry.Entry, in Input, commits []entry.Entry) bool {
	if strings.EqualFold(c.Author, c.PRAuthor) {
		return false
	}

	switch c.Subtype {
	case entry.SubtypeReviewComment:
		if c.ThreadResolved == entry.ThreadResolvedTrue {
			return false
		}
		if in.AckedIDs[c.ID] {
			return false
		}
		// thread_resolved == false or unknown: conservatively unaddressed.
		return true

	case entry.SubtypeIssueComment:
		if in.AckedIDs[c.ID] {
			return false
		}
		if in.Username != "" && containsFold(c.Reactions.ThumbsUpBy, in.Username) {
			return false
		}
		if c.FileActivity != nil && c.FileActivity.Modified {
			return false
		}
		if in.CommitImpliesRead && in.Username != "" {
			for _, commit := range commits {
				if strings.EqualFold(commit.Author, in.Username) && commit.CreatedAt.After(c.CreatedAt) {
					return false
				}
			}
		}
		return true

	default:
		return false
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// classify assigns the single, highest-priority category for one PR, or
// returns nil if the PR matches none (spec §4.6, §8 property 6).
func classify(pr int, agg *prAgg, eligible map[entry.PRState]bool, now time.Time) *Item {
	base := func(cat Category) *Item {
		return &Item{
			PR:       pr,
			PRTitle:  agg.meta.PRTitle,
			PRAuthor: agg.meta.PRAuthor,
			PRBranch: agg.meta.PRBranch,
			PRState:  agg.meta.PRState,
			Category: cat,
			Count:    1,
			Graphite: agg.graphite,
		}
	}

	if len(agg.unaddressed) > 0 {
		item := base(CategoryUnaddressed)
		item.Count = len(agg.unaddressed)
		item.Description = describeUnaddressed(agg.unaddressed)
		return item
	}

	isOpenState := agg.meta.PRState == entry.PRStateOpen || agg.meta.PRState == entry.PRStateDraft

	if isOpenState && agg.reviewStates.changesRequested > 0 {
		item := base(CategoryChangesRequested)
		item.Description = "changes requested"
		return item
	}

	if isOpenState && agg.reviewStates.approved == 0 && agg.reviewStates.changesRequested == 0 && agg.reviewStates.commented == 0 {
		item := base(CategoryAwaitingReview)
		item.Description = "awaiting review"
		return item
	}

	if agg.meta.PRState == entry.PRStateOpen &&
		now.Sub(agg.lastActivityAt) > StaleDays*24*time.Hour &&
		agg.reviewStates.changesRequested == 0 {
		item := base(CategoryStale)
		item.Description = fmt.Sprintf("no activity in %d+ days", StaleDays)
		return item
	}

	return nil
}

// describeUnaddressed enumerates distinct comment authors by count,
// truncated to the top 3 with a "+N more" suffix (spec §4.6).
func describeUnaddressed(comments []entry.Entry) string {
	counts := make(map[string]int)
	var authorsInOrder []string
	for _, c := range comments {
		if counts[c.Author] == 0 {
			authorsInOrder = append(authorsInOrder, c.Author)
		}
		counts[c.Author]++
	}

	sort.SliceStable(authorsInOrder, func(i, j int) bool {
		a, b := authorsInOrder[i], authorsInOrder[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return a < b
	})

	top := authorsInOrder
	extra := 0
	if len(top) > 3 {
		extra = len(top) - 3
		top = top[:3]
	}

	parts := make([]string, 0, len(top))
	for _, a := range top {
		parts = append(parts, fmt.Sprintf("%s (%d)", a, counts[a]))
	}
	desc := strings.Join(parts, ", ")
	if extra > 0 {
		desc += fmt.Sprintf(", +%d more", extra)
	}
	return desc
}

func compileBotPatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if re, err := regexp.Compile("(?i)" + p); err == nil {
			out = append(out, re)
		}
	}
	return out
}

func matchesAnyBotPattern(author string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(author) {
			return true
		}
	}
	return false
}
