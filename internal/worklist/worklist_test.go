package worklist

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

func TestBuildEmptyInput(t *testing.T) {
	if got := Build(nil); len(got) != 0 {
		t.Errorf("Build(nil) = %v, want empty", got)
	}
}

func TestBuildAggregation(t *testing.T) {
	entries := []entry.Entry{
		{PR: 10, Type: entry.TypeComment, PRState: entry.PRStateOpen, PRTitle: "fix", PRAuthor: "alice", CreatedAt: mustTime("2025-01-02T03:00:00Z")},
		{PR: 10, Type: entry.TypeComment, PRState: entry.PRStateOpen, PRTitle: "fix", PRAuthor: "alice", CreatedAt: mustTime("2025-01-02T05:00:00Z")},
		{PR: 10, Type: entry.TypeReview, State: "changes_requested", PRState: entry.PRStateOpen, PRTitle: "fix", PRAuthor: "alice", CreatedAt: mustTime("2025-01-02T04:00:00Z")},
		{PR: 13, Type: entry.TypeCommit, PRState: entry.PRStateOpen, PRTitle: "other", PRAuthor: "bob", CreatedAt: mustTime("2025-01-01T00:00:00Z")},
	}

	got := Build(entries)
	if len(got) != 2 {
		t.Fatalf("got %d worklist entries, want 2", len(got))
	}

	// PR 10 has the most recent activity, so it sorts first.
	if got[0].PR != 10 {
		t.Errorf("got[0].PR = %d, want 10", got[0].PR)
	}
	if got[0].Counts.Comments != 2 {
		t.Errorf("Counts.Comments = %d, want 2", got[0].Counts.Comments)
	}
	if got[0].ReviewStates.ChangesRequested != 1 {
		t.Errorf("ReviewStates.ChangesRequested = %d, want 1", got[0].ReviewStates.ChangesRequested)
	}
	wantLast := mustTime("2025-01-02T05:00:00Z").UnixNano()
	if got[0].LastActivityAt != wantLast {
		t.Errorf("LastActivityAt = %d, want %d", got[0].LastActivityAt, wantLast)
	}

	if got[1].PR != 13 {
		t.Errorf("got[1].PR = %d, want 13", got[1].PR)
	}
}

func TestBuildOrdersByPRWhenActivityTies(t *testing.T) {
	ts := mustTime("2025-01-01T00:00:00Z")
	entries := []entry.Entry{
		{PR: 20, Type: entry.TypeEvent, CreatedAt: ts},
		{PR: 5, Type: entry.TypeEvent, CreatedAt: ts},
	}
	got := Build(entries)
	if got[0].PR != 5 || got[1].PR != 20 {
		t.Errorf("tie-break order = [%d, %d], want [5, 20]", got[0].PR, got[1].PR)
	}
}

func TestBuildPropagatesGraphite(t *testing.T) {
	gi := &entry.GraphiteInfo{StackID: "s1", StackPosition: 1, StackSize: 3}
	entries := []entry.Entry{
		{PR: 1, Type: entry.TypeComment, CreatedAt: mustTime("2025-01-01T00:00:00Z")},
		{PR: 1, Type: entry.TypeReview, CreatedAt: mustTime("2025-01-01T01:00:00Z"), Graphite: gi},
	}
	got := Build(entries)
	if got[0].Graphite == nil || got[0].Graphite.StackID != "s1" {
		t.Errorf("Graphite not propagated: %+v", got[0].Graphite)
	}
}
