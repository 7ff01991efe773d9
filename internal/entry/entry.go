// Package entry defines the atomic observation types Firewatch stores and
// queries: activity entries, PR metadata, sync checkpoints, ack records, and
// freeze markers.
package entry

import (
	"strings"
	"time"
)

// Type distinguishes the broad kind of activity an Entry records.
type Type string

const (
	TypeComment Type = "comment"
	TypeReview  Type = "review"
	TypeCommit  Type = "commit"
	TypeCI      Type = "ci"
	TypeEvent   Type = "event"
)

// Subtype further distinguishes comment entries.
type Subtype string

const (
	SubtypeIssueComment  Subtype = "issue_comment"
	SubtypeReviewComment Subtype = "review_comment"
)

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateDraft  PRState = "draft"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// Scope partitions sync and queries into the two state buckets the spec
// defines: open/draft PRs, and closed/merged PRs.
type Scope string

const (
	ScopeOpen   Scope = "open"
	ScopeClosed Scope = "closed"
)

// ReviewState is the normalised (lowercase) state of a review entry.
type ReviewState string

const (
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
	ReviewCommented        ReviewState = "commented"
	ReviewDismissed        ReviewState = "dismissed"
)

// ThreadResolved is a tri-state: known-true, known-false, or unknown (the
// zero value), used only on review_comment entries.
type ThreadResolved int

const (
	ThreadResolvedUnknown ThreadResolved = iota
	ThreadResolvedTrue
	ThreadResolvedFalse
)

// FileActivityAfter records whether commits followed a comment. Sync sets
// it on issue comments, counting every PR commit made after the comment
// (issue comments name no file, so the count is PR-wide).
type FileActivityAfter struct {
	Modified           bool       `json:"modified"`
	CommitsTouchingFile int       `json:"commits_touching_file"`
	LatestCommit       string     `json:"latest_commit,omitempty"`
	LatestCommitAt     *time.Time `json:"latest_commit_at,omitempty"`
}

// Reactions captures the subset of reaction data Firewatch tracks.
type Reactions struct {
	ThumbsUpBy []string `json:"thumbs_up_by,omitempty"`
}

// GraphiteInfo is enrichment attached by the Graphite stack-provider plugin.
type GraphiteInfo struct {
	StackID       string `json:"stack_id"`
	StackPosition int    `json:"stack_position"`
	StackSize     int    `json:"stack_size"`
}

// Entry is one immutable observation of PR activity.
type Entry struct {
	ID   string `json:"id"`
	Repo string `json:"repo"`

	PR        int     `json:"pr"`
	PRState   PRState `json:"pr_state"`
	PRAuthor  string  `json:"pr_author"`
	PRTitle   string  `json:"pr_title"`
	PRBranch  string  `json:"pr_branch"`
	PRLabels  []string `json:"pr_labels,omitempty"`

	Type    Type    `json:"type"`
	Subtype Subtype `json:"subtype,omitempty"`

	Author      string `json:"author"`
	AuthorLogin string `json:"author_login,omitempty"`

	Body           string             `json:"body,omitempty"`
	State          string             `json:"state,omitempty"`
	File           string             `json:"file,omitempty"`
	Line           int                `json:"line,omitempty"`
	DatabaseID     int64              `json:"database_id,omitempty"`
	ThreadID       string             `json:"thread_id,omitempty"`
	ThreadResolved ThreadResolved     `json:"thread_resolved,omitempty"`
	FileActivity   *FileActivityAfter `json:"file_activity_after,omitempty"`
	Reactions      Reactions          `json:"reactions,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	CapturedAt time.Time `json:"captured_at"`

	Graphite *GraphiteInfo `json:"graphite,omitempty"`
}

// IsSelfComment reports whether the entry's author is the PR's own author
// (case-insensitive), the rule §3 uses to suppress self-comments from
// actionable derivation.
func (e Entry) IsSelfComment() bool {
	return strings.EqualFold(e.Author, e.PRAuthor)
}

// PRMeta is one row per (repo, pr): the current known state of a pull
// request, upserted on every sync pass.
type PRMeta struct {
	Repo     string   `json:"repo"`
	PR       int      `json:"pr"`
	State    PRState  `json:"pr_state"`
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Branch   string   `json:"branch"`
	Labels   []string `json:"labels,omitempty"`
	Draft    bool     `json:"draft"`
	NodeID   string   `json:"node_id"`
	URL      string   `json:"url,omitempty"`
}

// SyncMeta is the checkpoint for a (repo, scope) sync partition.
type SyncMeta struct {
	Repo     string    `json:"repo"`
	Scope    Scope     `json:"scope"`
	LastSync time.Time `json:"last_sync"`
	PRCount  int       `json:"pr_count"`
	Cursor   string    `json:"cursor,omitempty"`
}

// AckRecord is a local acknowledgement of a comment, keyed by (repo,
// comment id). The newest record for a given comment shadows older ones.
type AckRecord struct {
	Repo           string    `json:"repo"`
	CommentID      string    `json:"comment_id"`
	PR             int       `json:"pr"`
	AckedAt        time.Time `json:"acked_at"`
	AckedBy        string    `json:"acked_by,omitempty"`
	ReactionAdded  bool      `json:"reaction_added"`
}

// FreezeRecord masks entries newer than FrozenAt for a (repo, pr) pair.
type FreezeRecord struct {
	Repo     string    `json:"repo"`
	PR       int       `json:"pr"`
	FrozenAt time.Time `json:"frozen_at"`
}
