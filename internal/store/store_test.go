package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firewatch.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func baseEntry(id string, pr int, author string, createdAt time.Time) entry.Entry {
	return entry.Entry{
		ID:         id,
		Repo:       "acme/widgets",
		PR:         pr,
		PRState:    entry.PRStateOpen,
		PRAuthor:   "alice",
		PRTitle:    "add frobnicator",
		Type:       entry.TypeComment,
		Subtype:    entry.SubtypeIssueComment,
		Author:     author,
		Body:       "looks good",
		CreatedAt:  createdAt,
		CapturedAt: createdAt,
	}
}

func TestUpsertEntriesIdempotent(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	e := baseEntry("c1", 1, "bob", now)

	if err := s.UpsertEntries(ctx, []entry.Entry{e}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	e.Body = "looks good, updated"
	if err := s.UpsertEntries(ctx, []entry.Entry{e}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.QueryEntries(ctx, Filter{Repo: "acme/widgets"}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 entry after re-upsert, got %d", len(got))
	}
	if got[0].Body != "looks good, updated" {
		t.Errorf("expected updated body, got %q", got[0].Body)
	}
}

func TestQueryEntriesOrdering(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	t1 := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	entries := []entry.Entry{
		baseEntry("c1", 1, "bob", t1),
		baseEntry("c2", 1, "bob", t3),
		baseEntry("c3", 1, "bob", t2),
	}
	if err := s.UpsertEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	got, err := s.QueryEntries(ctx, Filter{Repo: "acme/widgets"}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	wantOrder := []string{"c2", "c3", "c1"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestQueryEntriesExcludeBots(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []entry.Entry{
		baseEntry("c1", 1, "bob", now),
		baseEntry("c2", 1, "dependabot[bot]", now.Add(time.Minute)),
		baseEntry("c3", 1, "renovate-bot", now.Add(2*time.Minute)),
	}
	if err := s.UpsertEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	got, err := s.QueryEntries(ctx, Filter{
		Repo:        "acme/widgets",
		ExcludeBots: true,
		BotPatterns: []string{`\[bot\]$`, `-bot$`, `^dependabot`, `^renovate`},
	}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 non-bot entry, got %d", len(got))
	}
	if got[0].ID != "c1" {
		t.Errorf("expected c1, got %s", got[0].ID)
	}
}

func TestQueryEntriesFreezeMasking(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	frozenAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	before := baseEntry("c1", 1, "bob", frozenAt.Add(-time.Hour))
	after := baseEntry("c2", 1, "bob", frozenAt.Add(time.Hour))
	if err := s.UpsertEntries(ctx, []entry.Entry{before, after}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}
	if err := s.SetFreeze(ctx, "acme/widgets", 1, frozenAt); err != nil {
		t.Fatalf("SetFreeze: %v", err)
	}

	got, err := s.QueryEntries(ctx, Filter{Repo: "acme/widgets"}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected only pre-freeze entry c1, got %+v", got)
	}

	gotAll, err := s.QueryEntries(ctx, Filter{Repo: "acme/widgets", IncludeFrozen: true}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries with IncludeFrozen: %v", err)
	}
	if len(gotAll) != 2 {
		t.Fatalf("expected 2 entries with IncludeFrozen, got %d", len(gotAll))
	}
}

func TestQueryEntriesLimitOffsetAfterFiltering(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []entry.Entry{
		baseEntry("c1", 1, "bob", now),
		baseEntry("c2", 1, "dependabot[bot]", now.Add(time.Minute)),
		baseEntry("c3", 1, "carol", now.Add(2*time.Minute)),
	}
	if err := s.UpsertEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	// Without bot filtering, limit 1 would return c3 (newest). With bot
	// filtering applied before limit, the bot entry must never consume a
	// page slot even though it sorts between the two real entries.
	got, err := s.QueryEntries(ctx, Filter{
		Repo:        "acme/widgets",
		ExcludeBots: true,
		BotPatterns: []string{`\[bot\]$`},
	}, 1, 1)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c1" {
		t.Fatalf("expected [c1] after bot exclusion + offset, got %+v", got)
	}
}

func TestAckedIDsForShadowsOlderAck(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	older := entry.AckRecord{Repo: "acme/widgets", CommentID: "c1", PR: 1, AckedAt: time.Now().Add(-time.Hour)}
	newer := entry.AckRecord{Repo: "acme/widgets", CommentID: "c1", PR: 1, AckedAt: time.Now(), AckedBy: "alice"}
	if err := s.InsertAcks(ctx, []entry.AckRecord{older, newer}); err != nil {
		t.Fatalf("InsertAcks: %v", err)
	}

	acked, err := s.AckedIDsFor(ctx, "acme/widgets")
	if err != nil {
		t.Fatalf("AckedIDsFor: %v", err)
	}
	if !acked["c1"] {
		t.Errorf("expected c1 to be acked")
	}
}

func TestQueryEntriesOrphaned(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC()

	closed := baseEntry("c1", 1, "bob", now)
	closed.PRState = entry.PRStateClosed
	closed.Type = entry.TypeComment
	closed.Subtype = entry.SubtypeReviewComment
	closed.ThreadResolved = entry.ThreadResolvedFalse

	resolvedClosed := baseEntry("c2", 2, "bob", now)
	resolvedClosed.PRState = entry.PRStateClosed
	resolvedClosed.Type = entry.TypeComment
	resolvedClosed.Subtype = entry.SubtypeReviewComment
	resolvedClosed.ThreadResolved = entry.ThreadResolvedTrue

	openPR := baseEntry("c3", 3, "bob", now)
	openPR.Type = entry.TypeComment
	openPR.Subtype = entry.SubtypeReviewComment
	openPR.ThreadResolved = entry.ThreadResolvedFalse

	if err := s.UpsertEntries(ctx, []entry.Entry{closed, resolvedClosed, openPR}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	got, err := s.QueryEntries(ctx, Filter{
		Repo:         "acme/widgets",
		ExcludeStale: true,
		Orphaned:     true,
	}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(got) != 1 || got[0].PR != 1 {
		t.Fatalf("expected only PR 1's orphaned entry, got %+v", got)
	}
}

func TestClearRepo(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := s.UpsertEntries(ctx, []entry.Entry{baseEntry("c1", 1, "bob", now)}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}
	if err := s.UpsertPR(ctx, entry.PRMeta{Repo: "acme/widgets", PR: 1, State: entry.PRStateOpen}); err != nil {
		t.Fatalf("UpsertPR: %v", err)
	}
	if err := s.SetFreeze(ctx, "acme/widgets", 1, now); err != nil {
		t.Fatalf("SetFreeze: %v", err)
	}

	if err := s.ClearRepo(ctx, "acme/widgets"); err != nil {
		t.Fatalf("ClearRepo: %v", err)
	}

	entries, err := s.QueryEntries(ctx, Filter{Repo: "acme/widgets", IncludeFrozen: true}, 0, 0)
	if err != nil {
		t.Fatalf("QueryEntries: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries after ClearRepo, got %d", len(entries))
	}
	prs, err := s.ListPRs(ctx, "acme/widgets")
	if err != nil {
		t.Fatalf("ListPRs: %v", err)
	}
	if len(prs) != 0 {
		t.Errorf("expected no PRs after ClearRepo, got %d", len(prs))
	}
}

func TestCountEntriesMatchesQueryLength(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC()
	entries := []entry.Entry{
		baseEntry("c1", 1, "bob", now),
		baseEntry("c2", 1, "carol", now.Add(time.Minute)),
	}
	if err := s.UpsertEntries(ctx, entries); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	n, err := s.CountEntries(ctx, Filter{Repo: "acme/widgets"})
	if err != nil {
		t.Fatalf("CountEntries: %v", err)
	}
	if n != 2 {
		t.Errorf("expected count 2, got %d", n)
	}
}

func TestThreadIDRoundTrips(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	e := baseEntry("rc1", 1, "carol", now)
	e.Subtype = entry.SubtypeReviewComment
	e.ThreadID = "thread-abc"

	if err := s.UpsertEntries(ctx, []entry.Entry{e}); err != nil {
		t.Fatalf("UpsertEntries: %v", err)
	}

	got, err := s.QueryCommentEntries(ctx, "acme/widgets")
	if err != nil {
		t.Fatalf("QueryCommentEntries: %v", err)
	}
	if len(got) != 1 || got[0].ThreadID != "thread-abc" {
		t.Errorf("got %+v, want one entry with ThreadID=thread-abc", got)
	}
}
