package actionable

import (
	"testing"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func pr10Base(typ entry.Type) entry.Entry {
	return entry.Entry{
		PR: 10, PRState: entry.PRStateOpen, PRAuthor: "alice", PRTitle: "fix", Type: typ,
	}
}

// TestS1ClassificationMatrix mirrors spec §8 scenario S1.
func TestS1ClassificationMatrix(t *testing.T) {
	review := pr10Base(entry.TypeReview)
	review.Author = "bob"
	review.State = "changes_requested"
	review.CreatedAt = mustTime("2025-01-02T04:00:00Z")

	issueComment := pr10Base(entry.TypeComment)
	issueComment.Subtype = entry.SubtypeIssueComment
	issueComment.Author = "alice" // == pr_author: self-comment, suppressed
	issueComment.CreatedAt = mustTime("2025-01-02T03:00:00Z")

	items := Derive(Input{Entries: []entry.Entry{review, issueComment}, Now: mustTime("2025-01-03T00:00:00Z")})

	if len(items) != 1 || items[0].Category != CategoryChangesRequested {
		t.Fatalf("got %+v, want exactly one changes_requested item", items)
	}
}

// TestS2UnaddressedPrecedence mirrors spec §8 scenario S2.
func TestS2UnaddressedPrecedence(t *testing.T) {
	review := pr10Base(entry.TypeReview)
	review.Author = "bob"
	review.State = "changes_requested"
	review.CreatedAt = mustTime("2025-01-02T04:00:00Z")

	reviewComment := pr10Base(entry.TypeComment)
	reviewComment.ID = "carol-comment-1"
	reviewComment.Subtype = entry.SubtypeReviewComment
	reviewComment.Author = "carol"
	reviewComment.ThreadResolved = entry.ThreadResolvedFalse
	reviewComment.CreatedAt = mustTime("2025-01-02T05:00:00Z")

	items := Derive(Input{Entries: []entry.Entry{review, reviewComment}, Now: mustTime("2025-01-03T00:00:00Z")})

	if len(items) != 1 || items[0].Category != CategoryUnaddressed {
		t.Fatalf("got %+v, want exactly one unaddressed item (priority over changes_requested)", items)
	}
}

// TestS3AckOverlay mirrors spec §8 scenario S3.
func TestS3AckOverlay(t *testing.T) {
	review := pr10Base(entry.TypeReview)
	review.Author = "bob"
	review.State = "changes_requested"
	review.CreatedAt = mustTime("2025-01-02T04:00:00Z")

	reviewComment := pr10Base(entry.TypeComment)
	reviewComment.ID = "carol-comment-1"
	reviewComment.Subtype = entry.SubtypeReviewComment
	reviewComment.Author = "carol"
	reviewComment.ThreadResolved = entry.ThreadResolvedFalse
	reviewComment.CreatedAt = mustTime("2025-01-02T05:00:00Z")

	items := Derive(Input{
		Entries:  []entry.Entry{review, reviewComment},
		AckedIDs: map[string]bool{"carol-comment-1": true},
		Now:      mustTime("2025-01-03T00:00:00Z"),
	})

	if len(items) != 1 || items[0].Category != CategoryChangesRequested {
		t.Fatalf("got %+v, want changes_requested once the review comment is acked", items)
	}
}

// TestS4StaleThreshold mirrors spec §8 scenario S4. PR 13 carries an
// approved review, so it is not awaiting_review (which outranks stale).
func TestS4StaleThreshold(t *testing.T) {
	now := mustTime("2025-01-11T00:00:00Z")
	e := entry.Entry{
		PR: 13, PRState: entry.PRStateOpen, PRAuthor: "alice", Type: entry.TypeReview,
		Author: "bob", State: "approved",
		CreatedAt: now.Add(-10 * 24 * time.Hour),
	}

	items := Derive(Input{Entries: []entry.Entry{e}, Now: now})
	if len(items) != 1 || items[0].Category != CategoryStale {
		t.Fatalf("got %+v, want a single stale item", items)
	}
}

// TestThreadResolvedPrecedence mirrors spec §8 property 10: a resolved
// thread is never unaddressed, regardless of ack state.
func TestThreadResolvedPrecedence(t *testing.T) {
	c := pr10Base(entry.TypeComment)
	c.ID = "resolved-1"
	c.Subtype = entry.SubtypeReviewComment
	c.Author = "carol"
	c.ThreadResolved = entry.ThreadResolvedTrue
	c.CreatedAt = mustTime("2025-01-02T05:00:00Z")

	items := Derive(Input{Entries: []entry.Entry{c}, Now: mustTime("2025-01-03T00:00:00Z")})
	for _, it := range items {
		if it.Category == CategoryUnaddressed {
			t.Fatalf("resolved thread should never be unaddressed: %+v", it)
		}
	}
}

// TestBotExclusion mirrors spec §8 property 9.
func TestBotExclusion(t *testing.T) {
	patterns := []string{`\[bot\]$`, `-bot$`}

	mk := func(author string) entry.Entry {
		c := pr10Base(entry.TypeComment)
		c.ID = "c-" + author
		c.Subtype = entry.SubtypeIssueComment
		c.Author = author
		c.CreatedAt = mustTime("2025-01-02T05:00:00Z")
		return c
	}

	entries := []entry.Entry{mk("dependabot[bot]"), mk("sonar-bot"), mk("bobalice")}

	items := Derive(Input{Entries: entries, BotPatterns: patterns, Now: mustTime("2025-01-03T00:00:00Z")})
	if len(items) != 1 || items[0].Category != CategoryUnaddressed || items[0].Count != 1 {
		t.Fatalf("got %+v, want exactly one unaddressed item with count 1 (bobalice only)", items)
	}
}

func TestAwaitingReview(t *testing.T) {
	e := pr10Base(entry.TypeEvent)
	e.CreatedAt = mustTime("2025-01-02T00:00:00Z")
	items := Derive(Input{Entries: []entry.Entry{e}, Now: mustTime("2025-01-02T01:00:00Z")})
	if len(items) != 1 || items[0].Category != CategoryAwaitingReview {
		t.Fatalf("got %+v, want awaiting_review", items)
	}
}

func TestClosedPRNeverAwaitingOrStale(t *testing.T) {
	e := entry.Entry{PR: 1, PRState: entry.PRStateClosed, Type: entry.TypeEvent, CreatedAt: mustTime("2020-01-01T00:00:00Z")}
	items := Derive(Input{Entries: []entry.Entry{e}, Now: mustTime("2025-01-01T00:00:00Z")})
	if len(items) != 0 {
		t.Fatalf("closed PR with no open-scope signal should produce no items, got %+v", items)
	}
}

func TestDescribeUnaddressedTruncatesToTop3(t *testing.T) {
	mk := func(author string, n int) []entry.Entry {
		var out []entry.Entry
		for i := 0; i < n; i++ {
			out = append(out, entry.Entry{Author: author})
		}
		return out
	}
	var comments []entry.Entry
	comments = append(comments, mk("a", 5)...)
	comments = append(comments, mk("b", 4)...)
	comments = append(comments, mk("c", 3)...)
	comments = append(comments, mk("d", 2)...)

	desc := describeUnaddressed(comments)
	if desc != "a (5), b (4), c (3), +1 more" {
		t.Errorf("describeUnaddressed = %q", desc)
	}
}

func TestFilterPerspective(t *testing.T) {
	items := []Item{{PR: 1, PRAuthor: "alice"}, {PR: 2, PRAuthor: "bob"}}

	mine := FilterPerspective(items, "alice", PerspectiveMine)
	if len(mine) != 1 || mine[0].PR != 1 {
		t.Errorf("mine = %+v", mine)
	}

	reviews := FilterPerspective(items, "alice", PerspectiveReviews)
	if len(reviews) != 1 || reviews[0].PR != 2 {
		t.Errorf("reviews = %+v", reviews)
	}
}
