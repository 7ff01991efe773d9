// Package feedback is Firewatch's Feedback Action Pipeline (spec §4.7): a
// small state machine coordinating reply/resolve/ack/close over review
// threads and issue comments, reconciling GitHub's thread-resolution API
// with a local ack overlay that survives until the next sync observes the
// remote change.
package feedback

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
	"github.com/outfitter-dev/firewatch-sub001/internal/shortid"
)

// reactionConcurrency bounds parallel reaction/resolve calls during bulk
// operations (spec §5: "bounded concurrency cap, default 8").
const reactionConcurrency = 8

// ThumbsUp is the only reaction content the pipeline adds (spec §4.2).
const ThumbsUp = "THUMBS_UP"

// GitHubClient is the subset of ghclient.Client the pipeline drives.
// Narrowed to an interface so tests can substitute a fake.
type GitHubClient interface {
	AddReview(ctx context.Context, prNodeID, event, body string) (*ghclient.WriteResult, error)
	AddIssueComment(ctx context.Context, prNodeID, body string) (*ghclient.WriteResult, error)
	AddReviewThreadReply(ctx context.Context, threadID, body string) (*ghclient.WriteResult, error)
	ResolveReviewThread(ctx context.Context, threadID string) error
	AddReaction(ctx context.Context, commentNodeID, content string) error
	ClosePullRequest(ctx context.Context, prNodeID string) error
}

// Store is the subset of store.Store the pipeline writes acks to and
// reads acked state from.
type Store interface {
	InsertAck(ctx context.Context, rec entry.AckRecord) error
	InsertAcks(ctx context.Context, recs []entry.AckRecord) error
}

// Pipeline coordinates feedback operations against one repo.
type Pipeline struct {
	Client GitHubClient
	Store  Store
}

// New builds a Pipeline.
func New(client GitHubClient, st Store) *Pipeline {
	return &Pipeline{Client: client, Store: st}
}

// ReplyResult is the outcome of a reply operation.
type ReplyResult struct {
	OK         bool   `json:"ok"`
	Repo       string `json:"repo"`
	PR         int    `json:"pr"`
	ID         string `json:"id"`
	GHID       string `json:"gh_id"`
	InReplyTo  string `json:"in_reply_to,omitempty"`
}

// ReplyToThread posts an inline reply within an existing review thread.
func (p *Pipeline) ReplyToThread(ctx context.Context, repo string, pr int, threadID, commentID, body string) (*ReplyResult, error) {
	res, err := p.Client.AddReviewThreadReply(ctx, threadID, body)
	if err != nil {
		return nil, err
	}
	return &ReplyResult{OK: true, Repo: repo, PR: pr, ID: shortid.Short(res.ID, repo), GHID: res.ID, InReplyTo: commentID}, nil
}

// ReplyToPR posts a top-level issue comment on a PR.
func (p *Pipeline) ReplyToPR(ctx context.Context, repo string, pr int, prNodeID, body string) (*ReplyResult, error) {
	res, err := p.Client.AddIssueComment(ctx, prNodeID, body)
	if err != nil {
		return nil, err
	}
	return &ReplyResult{OK: true, Repo: repo, PR: pr, ID: shortid.Short(res.ID, repo), GHID: res.ID}, nil
}

// ResolveResult is the outcome of a resolve operation.
type ResolveResult struct {
	OK       bool   `json:"ok"`
	Repo     string `json:"repo"`
	PR       int    `json:"pr"`
	ID       string `json:"id"`
	GHID     string `json:"gh_id"`
	Resolved bool   `json:"resolved"`
	Acked    bool   `json:"acked"`
}

// ResolveReviewComment resolves a review comment's thread and records a
// local ack for it (spec §4.7: review_comment resolve path).
func (p *Pipeline) ResolveReviewComment(ctx context.Context, repo string, pr int, commentID, threadID string, now time.Time) (*ResolveResult, error) {
	if err := p.Client.ResolveReviewThread(ctx, threadID); err != nil {
		return nil, err
	}
	if err := p.Store.InsertAck(ctx, entry.AckRecord{Repo: repo, CommentID: commentID, PR: pr, AckedAt: now}); err != nil {
		return nil, err
	}
	return &ResolveResult{OK: true, Repo: repo, PR: pr, ID: shortid.Short(commentID, repo), GHID: commentID, Resolved: true, Acked: true}, nil
}

// AckResult is the outcome of an ack operation on one comment.
type AckResult struct {
	OK            bool   `json:"ok"`
	Repo          string `json:"repo"`
	PR            int    `json:"pr"`
	ID            string `json:"id"`
	GHID          string `json:"gh_id"`
	Acked         bool   `json:"acked"`
	ReactionAdded bool   `json:"reaction_added"`
}

// AckComment adds a thumbs-up reaction to commentID (GitHub has no
// "resolve" verb for issue comments, so this doubles as the issue-comment
// resolve path per spec §4.7) and records an ack. Since AddReaction
// treats a duplicate-reaction conflict as success, the ack record is
// still written even if the remote reaction already existed.
func (p *Pipeline) AckComment(ctx context.Context, repo string, pr int, commentID string, now time.Time) (*AckResult, error) {
	reactionErr := p.Client.AddReaction(ctx, commentID, ThumbsUp)
	reactionAdded := reactionErr == nil

	if err := p.Store.InsertAck(ctx, entry.AckRecord{
		Repo: repo, CommentID: commentID, PR: pr, AckedAt: now, ReactionAdded: reactionAdded,
	}); err != nil {
		return nil, err
	}
	return &AckResult{OK: true, Repo: repo, PR: pr, ID: shortid.Short(commentID, repo), GHID: commentID, Acked: true, ReactionAdded: reactionAdded}, nil
}

// ThreadTarget is one unaddressed comment to settle during a bulk ack or
// feedback-mode close: its node id, and (for an unresolved review
// comment) the thread id to resolve instead of reacting.
type ThreadTarget struct {
	CommentID string
	ThreadID  string // "" for issue comments, which have no thread to resolve
}

// BulkAckResult is the outcome of a PR-level bulk ack.
type BulkAckResult struct {
	OK          bool     `json:"ok"`
	Repo        string   `json:"repo"`
	PR          int      `json:"pr"`
	AckedCount  int      `json:"acked_count"`
	FailedCount int      `json:"failed_count"`
	IDs         []string `json:"ids,omitempty"`
	GHIDs       []string `json:"gh_ids,omitempty"`
}

// BulkAck acks every unaddressed comment on a PR: it fires reactions (or
// thread resolves, when a thread id is known) in parallel, bounded to
// reactionConcurrency, then writes one ack record per comment atomically
// (spec §4.7: "Bulk writes must be atomic at the store boundary").
func (p *Pipeline) BulkAck(ctx context.Context, repo string, pr int, targets []ThreadTarget, now time.Time) (*BulkAckResult, error) {
	if len(targets) == 0 {
		return &BulkAckResult{OK: true, Repo: repo, PR: pr}, nil
	}

	reacted := make([]bool, len(targets))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(reactionConcurrency)
	var mu sync.Mutex

	for i, target := range targets {
		i, target := i, target
		eg.Go(func() error {
			var err error
			if target.ThreadID != "" {
				err = p.Client.ResolveReviewThread(egCtx, target.ThreadID)
			} else {
				err = p.Client.AddReaction(egCtx, target.CommentID, ThumbsUp)
			}
			mu.Lock()
			reacted[i] = err == nil
			mu.Unlock()
			return nil // per-item failures don't abort the batch (spec §7)
		})
	}
	// errgroup.Wait only ever returns nil here since goroutines never
	// return an error; kept for the cancellation-propagation behavior.
	_ = eg.Wait()

	recs := make([]entry.AckRecord, len(targets))
	failed := 0
	for i, target := range targets {
		recs[i] = entry.AckRecord{
			Repo: repo, CommentID: target.CommentID, PR: pr, AckedAt: now, ReactionAdded: reacted[i],
		}
		if !reacted[i] {
			failed++
		}
	}

	if err := p.Store.InsertAcks(ctx, recs); err != nil {
		return nil, err
	}

	ghIDs := make([]string, len(targets))
	ids := make([]string, len(targets))
	for i, target := range targets {
		ghIDs[i] = target.CommentID
		ids[i] = shortid.Short(target.CommentID, repo)
	}

	return &BulkAckResult{
		OK: failed == 0, Repo: repo, PR: pr,
		AckedCount: len(targets) - failed, FailedCount: failed,
		IDs: ids, GHIDs: ghIDs,
	}, nil
}

// CloseResult is the outcome of a close operation.
type CloseResult struct {
	OK            bool   `json:"ok"`
	Repo          string `json:"repo"`
	PR            int    `json:"pr"`
	Closed        bool   `json:"closed,omitempty"`
	ClosedCount   int    `json:"closed_count,omitempty"`
	ResolvedCount int    `json:"resolved_count,omitempty"`
}

// Close closes a PR outright (default mode, spec §4.7: "after explicit
// confirmation on the human surface" -- confirmation is the surface's
// responsibility, not the pipeline's).
func (p *Pipeline) Close(ctx context.Context, repo string, pr int, prNodeID string) (*CloseResult, error) {
	if err := p.Client.ClosePullRequest(ctx, prNodeID); err != nil {
		return nil, err
	}
	return &CloseResult{OK: true, Repo: repo, PR: pr, Closed: true}, nil
}

// CloseFeedback resolves every unresolved thread and acks every
// unresolvable comment on a PR (spec §4.7: "--feedback on a PR number"
// "resolve every unresolved thread and ack every unresolvable comment in
// the PR" -- it does not close the PR; spec §8 scenario S5's expected
// payload carries no PR-close signal).
func (p *Pipeline) CloseFeedback(ctx context.Context, repo string, pr int, targets []ThreadTarget, now time.Time) (*CloseResult, error) {
	bulkResult, err := p.BulkAck(ctx, repo, pr, targets, now)
	if err != nil {
		return nil, err
	}

	resolvedCount := 0
	for _, t := range targets {
		if t.ThreadID != "" {
			resolvedCount++
		}
	}
	// BulkAck does not distinguish resolved-vs-reacted success per item in
	// its summary, so resolvedCount here counts attempted thread resolves;
	// AckedCount already reflects how many of those (plus reactions)
	// actually succeeded.
	if resolvedCount > bulkResult.AckedCount {
		resolvedCount = bulkResult.AckedCount
	}

	return &CloseResult{
		OK: bulkResult.OK, Repo: repo, PR: pr,
		ClosedCount: len(targets), ResolvedCount: resolvedCount,
	}, nil
}

// ConflictsWithRemote reports whether a local ack for an entry that is
// now known to have thread_resolved=true has become a no-op: the remote
// state wins at next sync (spec §4.7), so this is informational only,
// never an error.
func ConflictsWithRemote(e entry.Entry, acked bool) bool {
	return acked && e.Subtype == entry.SubtypeReviewComment && e.ThreadResolved == entry.ThreadResolvedTrue
}

// TargetsFromUnaddressed converts actionable.Item-adjacent raw comment
// entries into the targets BulkAck/CloseFeedback need: review comments
// with an unresolved thread get a ThreadID so the pipeline resolves
// instead of reacting; issue comments (and review comments without a
// known thread id) get reacted.
func TargetsFromUnaddressed(comments []entry.Entry, threadIDs map[string]string) []ThreadTarget {
	out := make([]ThreadTarget, 0, len(comments))
	for _, c := range comments {
		t := ThreadTarget{CommentID: c.ID}
		if c.Subtype == entry.SubtypeReviewComment {
			t.ThreadID = threadIDs[c.ID]
		}
		out = append(out, t)
	}
	return out
}

