package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
)

type fakeClient struct {
	mu             sync.Mutex
	resolvedThreads []string
	reactedComments []string
	closedPRs       []string
	failReactionFor map[string]bool
}

func (f *fakeClient) AddReview(ctx context.Context, prNodeID, event, body string) (*ghclient.WriteResult, error) {
	return &ghclient.WriteResult{ID: "review-1"}, nil
}

func (f *fakeClient) AddIssueComment(ctx context.Context, prNodeID, body string) (*ghclient.WriteResult, error) {
	return &ghclient.WriteResult{ID: "comment-1"}, nil
}

func (f *fakeClient) AddReviewThreadReply(ctx context.Context, threadID, body string) (*ghclient.WriteResult, error) {
	return &ghclient.WriteResult{ID: "reply-1"}, nil
}

func (f *fakeClient) ResolveReviewThread(ctx context.Context, threadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolvedThreads = append(f.resolvedThreads, threadID)
	return nil
}

func (f *fakeClient) AddReaction(ctx context.Context, commentNodeID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReactionFor[commentNodeID] {
		return errAlwaysFails
	}
	f.reactedComments = append(f.reactedComments, commentNodeID)
	return nil
}

func (f *fakeClient) ClosePullRequest(ctx context.Context, prNodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedPRs = append(f.closedPRs, prNodeID)
	return nil
}

type errString string

func (e errString) Error() string { return string(e) }

const errAlwaysFails = errString("boom")

type fakeStore struct {
	mu   sync.Mutex
	acks []entry.AckRecord
}

func (s *fakeStore) InsertAck(ctx context.Context, rec entry.AckRecord) error {
	return s.InsertAcks(ctx, []entry.AckRecord{rec})
}

func (s *fakeStore) InsertAcks(ctx context.Context, recs []entry.AckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acks = append(s.acks, recs...)
	return nil
}

func TestResolveReviewComment(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{}
	p := New(client, st)

	res, err := p.ResolveReviewComment(context.Background(), "acme/widgets", 10, "comment-1", "thread-1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Resolved || !res.Acked {
		t.Errorf("got %+v, want resolved+acked", res)
	}
	if len(client.resolvedThreads) != 1 || client.resolvedThreads[0] != "thread-1" {
		t.Errorf("resolvedThreads = %v", client.resolvedThreads)
	}
	if len(st.acks) != 1 || st.acks[0].CommentID != "comment-1" {
		t.Errorf("acks = %v", st.acks)
	}
}

func TestAckCommentFailedReactionStillAcks(t *testing.T) {
	client := &fakeClient{failReactionFor: map[string]bool{"c1": true}}
	st := &fakeStore{}
	p := New(client, st)

	res, err := p.AckComment(context.Background(), "acme/widgets", 10, "c1", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ReactionAdded {
		t.Error("expected ReactionAdded=false when the reaction call fails")
	}
	if !res.Acked {
		t.Error("expected the ack to still be written")
	}
	if len(st.acks) != 1 {
		t.Fatalf("want 1 ack record, got %d", len(st.acks))
	}
}

// TestS5BulkReactions mirrors spec §8 scenario S5: three unaddressed
// review comments, resolved in parallel, one ack record each.
func TestS5BulkReactions(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{}
	p := New(client, st)

	targets := []ThreadTarget{
		{CommentID: "c1", ThreadID: "t1"},
		{CommentID: "c2", ThreadID: "t2"},
		{CommentID: "c3", ThreadID: "t3"},
	}

	res, err := p.CloseFeedback(context.Background(), "acme/widgets", 42, targets, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || res.PR != 42 || res.ClosedCount != 3 || res.ResolvedCount != 3 {
		t.Errorf("got %+v, want {ok:true pr:42 closed_count:3 resolved_count:3}", res)
	}
	if len(client.resolvedThreads) != 3 {
		t.Errorf("resolvedThreads = %v, want 3 calls", client.resolvedThreads)
	}
	if len(st.acks) != 3 {
		t.Fatalf("want 3 ack records, got %d", len(st.acks))
	}
	// --feedback mode settles comments; it never closes the PR (spec §4.7).
	if len(client.closedPRs) != 0 {
		t.Errorf("closedPRs = %v, want none from CloseFeedback", client.closedPRs)
	}
	if res.Closed {
		t.Error("expected Closed=false from CloseFeedback")
	}
}

func TestBulkAckPartialFailureStillWritesAllAcks(t *testing.T) {
	client := &fakeClient{failReactionFor: map[string]bool{"c2": true}}
	st := &fakeStore{}
	p := New(client, st)

	targets := []ThreadTarget{{CommentID: "c1"}, {CommentID: "c2"}}
	res, err := p.BulkAck(context.Background(), "acme/widgets", 5, targets, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.OK {
		t.Error("expected OK=false when one reaction fails")
	}
	if res.AckedCount != 1 || res.FailedCount != 1 {
		t.Errorf("got AckedCount=%d FailedCount=%d, want 1/1", res.AckedCount, res.FailedCount)
	}
	// Atomic at the store boundary: both ack records are still written,
	// one with reaction_added=false.
	if len(st.acks) != 2 {
		t.Fatalf("want 2 ack records written regardless of per-item failure, got %d", len(st.acks))
	}
}

func TestBulkAckEmptyTargets(t *testing.T) {
	client := &fakeClient{}
	st := &fakeStore{}
	p := New(client, st)

	res, err := p.BulkAck(context.Background(), "acme/widgets", 5, nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.OK || len(st.acks) != 0 {
		t.Errorf("got %+v, acks=%v", res, st.acks)
	}
}

func TestConflictsWithRemote(t *testing.T) {
	e := entry.Entry{Subtype: entry.SubtypeReviewComment, ThreadResolved: entry.ThreadResolvedTrue}
	if !ConflictsWithRemote(e, true) {
		t.Error("expected a conflict when the remote has since resolved a locally-acked thread")
	}
	if ConflictsWithRemote(e, false) {
		t.Error("no conflict when there was no local ack")
	}
}
