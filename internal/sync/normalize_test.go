package sync

import (
	"testing"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestNormalizeCoversEveryChildCollection(t *testing.T) {
	meta := entry.PRMeta{Repo: "acme/widgets", PR: 10, State: entry.PRStateOpen, Author: "alice", Title: "fix"}
	captured := mustTime(t, "2025-01-03T00:00:00Z")

	activity := &ghclient.PRActivity{
		Reviews: []ghclient.ReviewNode{
			{ID: "r1", Author: "bob", State: "APPROVED", SubmittedAt: mustTime(t, "2025-01-02T00:00:00Z")},
		},
		ReviewComments: []ghclient.ReviewCommentNode{
			{ID: "rc1", Author: "carol", Path: "main.go", Line: 5, CreatedAt: mustTime(t, "2025-01-02T01:00:00Z"), ThreadID: "t1", ThreadResolved: true},
		},
		IssueComments: []ghclient.IssueCommentNode{
			{ID: "ic1", Author: "dave", CreatedAt: mustTime(t, "2025-01-02T02:00:00Z"), ThumbsUpBy: []string{"alice"}},
		},
		Commits: []ghclient.CommitNode{
			{SHA: "abc123", Author: "alice", CreatedAt: mustTime(t, "2025-01-02T03:00:00Z")},
		},
		CIChecks: []ghclient.CICheckNode{
			{Name: "build", Status: "COMPLETED", Conclusion: "SUCCESS", CompletedAt: mustTime(t, "2025-01-02T04:00:00Z")},
		},
	}

	entries := normalize("acme/widgets", meta, activity, captured)
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5 (one per child collection item)", len(entries))
	}

	byType := map[entry.Type]int{}
	for _, e := range entries {
		byType[e.Type]++
		if e.Repo != "acme/widgets" || e.PR != 10 || e.PRAuthor != "alice" {
			t.Errorf("scope keys not carried onto entry: %+v", e)
		}
		if e.CapturedAt != captured {
			t.Errorf("CapturedAt = %v, want %v", e.CapturedAt, captured)
		}
	}
	if byType[entry.TypeReview] != 1 || byType[entry.TypeComment] != 2 || byType[entry.TypeCommit] != 1 || byType[entry.TypeCI] != 1 {
		t.Errorf("byType = %+v", byType)
	}
}

func TestNormalizeReviewCommentThreadResolved(t *testing.T) {
	meta := entry.PRMeta{Repo: "acme/widgets", PR: 1}
	activity := &ghclient.PRActivity{
		ReviewComments: []ghclient.ReviewCommentNode{
			{ID: "rc1", ThreadResolved: true},
			{ID: "rc2", ThreadResolved: false},
		},
	}
	entries := normalize("acme/widgets", meta, activity, time.Now())
	if entries[0].ThreadResolved != entry.ThreadResolvedTrue {
		t.Errorf("rc1.ThreadResolved = %v, want true", entries[0].ThreadResolved)
	}
	if entries[1].ThreadResolved != entry.ThreadResolvedFalse {
		t.Errorf("rc2.ThreadResolved = %v, want false", entries[1].ThreadResolved)
	}
}

func TestNormalizeCarriesThreadID(t *testing.T) {
	meta := entry.PRMeta{Repo: "acme/widgets", PR: 1}
	activity := &ghclient.PRActivity{
		ReviewComments: []ghclient.ReviewCommentNode{{ID: "rc1", ThreadID: "thread-abc"}},
	}
	entries := normalize("acme/widgets", meta, activity, time.Now())
	if entries[0].ThreadID != "thread-abc" {
		t.Errorf("ThreadID = %q, want %q", entries[0].ThreadID, "thread-abc")
	}
}

func TestFileActivityAfterIssueComment(t *testing.T) {
	meta := entry.PRMeta{Repo: "acme/widgets", PR: 1}
	commentTime := mustTime(t, "2025-01-01T00:00:00Z")
	activity := &ghclient.PRActivity{
		IssueComments: []ghclient.IssueCommentNode{{ID: "ic1", CreatedAt: commentTime}},
		Commits: []ghclient.CommitNode{
			{SHA: "before", CreatedAt: commentTime.Add(-time.Hour)},
			{SHA: "after1", CreatedAt: commentTime.Add(time.Hour)},
			{SHA: "after2", CreatedAt: commentTime.Add(2 * time.Hour)},
		},
	}
	entries := normalize("acme/widgets", meta, activity, time.Now())
	fa := entries[0].FileActivity
	if fa == nil || !fa.Modified || fa.CommitsTouchingFile != 2 || fa.LatestCommit != "after2" {
		t.Errorf("FileActivity = %+v", fa)
	}
}

func TestFileActivityAfterNilWhenNoFollowingCommit(t *testing.T) {
	meta := entry.PRMeta{Repo: "acme/widgets", PR: 1}
	commentTime := mustTime(t, "2025-01-01T00:00:00Z")
	activity := &ghclient.PRActivity{
		IssueComments: []ghclient.IssueCommentNode{{ID: "ic1", CreatedAt: commentTime}},
		Commits:       []ghclient.CommitNode{{SHA: "before", CreatedAt: commentTime.Add(-time.Hour)}},
	}
	entries := normalize("acme/widgets", meta, activity, time.Now())
	if entries[0].FileActivity != nil {
		t.Errorf("FileActivity = %+v, want nil", entries[0].FileActivity)
	}
}

func TestCIStateMapping(t *testing.T) {
	tests := []struct {
		status, conclusion, want string
	}{
		{"IN_PROGRESS", "", "pending"},
		{"COMPLETED", "SUCCESS", "success"},
		{"COMPLETED", "FAILURE", "failure"},
		{"COMPLETED", "TIMED_OUT", "failure"},
		{"COMPLETED", "NEUTRAL", "neutral"},
	}
	for _, tt := range tests {
		got := ciState(ghclient.CICheckNode{Status: tt.status, Conclusion: tt.conclusion})
		if got != tt.want {
			t.Errorf("ciState(%q,%q) = %q, want %q", tt.status, tt.conclusion, got, tt.want)
		}
	}
}
