package shortid

import (
	"context"
	"testing"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

type fakeLookup struct {
	entries []entry.Entry
	calls   int
}

func (f *fakeLookup) QueryCommentEntries(ctx context.Context, repo string) ([]entry.Entry, error) {
	f.calls++
	return f.entries, nil
}

func TestShortDeterministic(t *testing.T) {
	a := Short("PR_kwABC123", "acme/widgets")
	b := Short("PR_kwABC123", "acme/widgets")
	if a != b {
		t.Errorf("Short is not deterministic: %q != %q", a, b)
	}
	if len(a) != shortIDLen {
		t.Errorf("len(Short(...)) = %d, want %d", len(a), shortIDLen)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"42", KindPR},
		{"0", KindPR},
		{"a1b2c", KindShortID},
		{"@a1b2c", KindShortID},
		{"PR_kwDOAbc12345xyz", KindFullID},
		{"not an id!", KindUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.input); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestResolveBatchPR(t *testing.T) {
	c := NewCache()
	lookup := &fakeLookup{}
	results := ResolveBatch(context.Background(), c, lookup, []string{"42"}, "acme/widgets")
	if len(results) != 1 || results[0].Kind != KindPR || results[0].PR != 42 {
		t.Fatalf("got %+v", results)
	}
	if lookup.calls != 0 {
		t.Errorf("resolving a PR number should not touch the store, got %d calls", lookup.calls)
	}
}

func TestResolveBatchShortIDRebuildsOnce(t *testing.T) {
	full := "PR_kwDOAbc12345xyzREVIEWCOMMENT"
	repo := "acme/widgets"
	c := NewCache()
	lookup := &fakeLookup{entries: []entry.Entry{
		{ID: full, Repo: repo, PR: 7, CreatedAt: time.Now()},
	}}

	sid := Display(Short(full, repo))

	results := ResolveBatch(context.Background(), c, lookup, []string{"42", sid}, repo)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[1].Kind != KindShortID || results[1].ID != full || results[1].PR != 7 {
		t.Errorf("short id result = %+v", results[1])
	}
	if lookup.calls != 1 {
		t.Errorf("expected exactly one rebuild, got %d", lookup.calls)
	}

	// Second identical call hits the warm cache: zero further store reads
	// (spec §8 scenario S6).
	results2 := ResolveBatch(context.Background(), c, lookup, []string{"42", sid}, repo)
	if results2[1].ID != full {
		t.Fatalf("cached lookup mismatch: %+v", results2[1])
	}
	if lookup.calls != 1 {
		t.Errorf("expected cache hit with zero additional store reads, got %d total calls", lookup.calls)
	}
}

func TestResolveBatchShortIDNotFound(t *testing.T) {
	c := NewCache()
	lookup := &fakeLookup{}
	results := ResolveBatch(context.Background(), c, lookup, []string{"@abcde"}, "acme/widgets")
	if results[0].Err == nil {
		t.Error("expected IdNotFoundError for an unknown short id")
	}
}

func TestMergeCollisionResolvesToSmallest(t *testing.T) {
	existing := cacheEntry{fullID: "PR_zzz", pr: 1}

	merged := mergeCollision(existing, "PR_aaa", 2)
	if merged.fullID != "PR_aaa" || merged.pr != 2 {
		t.Errorf("expected PR_aaa to become canonical, got %+v", merged)
	}
	if len(merged.others) != 1 || merged.others[0] != "PR_zzz" {
		t.Errorf("expected PR_zzz recorded as a collision candidate, got %+v", merged.others)
	}

	// A fullID that sorts after the canonical one is recorded but does not
	// displace it.
	merged2 := mergeCollision(merged, "PR_zzz2", 3)
	if merged2.fullID != "PR_aaa" {
		t.Errorf("larger fullID should not become canonical, got %q", merged2.fullID)
	}
	if len(merged2.others) != 2 {
		t.Errorf("expected 2 collision candidates, got %v", merged2.others)
	}
}
