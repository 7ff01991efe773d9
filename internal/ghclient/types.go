package ghclient

import "time"

// PRSummary is a lightweight PR row as listed by ListPullRequests: enough
// for the Sync Engine to decide whether a PR needs a detail fetch.
type PRSummary struct {
	Number    int
	NodeID    string
	State     string // "OPEN", "CLOSED", "MERGED"
	Title     string
	Author    string
	Branch    string
	Labels    []string
	Draft     bool
	URL       string
	UpdatedAt time.Time
}

// PRPage is one page of ListPullRequests.
type PRPage struct {
	PRs         []PRSummary
	HasNextPage bool
	EndCursor   string
}

// ReviewNode is one PR review.
type ReviewNode struct {
	ID          string
	DatabaseID  int64
	Author      string
	State       string // "APPROVED", "CHANGES_REQUESTED", "COMMENTED", "DISMISSED"
	Body        string
	SubmittedAt time.Time
}

// ReviewCommentNode is one review (inline) comment, with its thread's
// resolution state attached.
type ReviewCommentNode struct {
	ID             string
	DatabaseID     int64
	Author         string
	Body           string
	Path           string
	Line           int
	CreatedAt      time.Time
	ThreadID       string
	ThreadResolved bool
}

// IssueCommentNode is one issue-level (conversation tab) comment.
type IssueCommentNode struct {
	ID           string
	DatabaseID   int64
	Author       string
	Body         string
	CreatedAt    time.Time
	ThumbsUpBy   []string
}

// CommitNode is one commit on the PR's head branch.
type CommitNode struct {
	SHA       string
	Author    string
	Message   string
	CreatedAt time.Time
}

// CICheckNode is one check run on the PR's head commit.
type CICheckNode struct {
	Name       string
	Status     string
	Conclusion string
	CompletedAt time.Time
}

// PRActivity bundles every child collection FetchPRActivity retrieves for
// one pull request.
type PRActivity struct {
	Reviews        []ReviewNode
	ReviewComments []ReviewCommentNode
	IssueComments  []IssueCommentNode
	Commits        []CommitNode
	CIChecks       []CICheckNode
}

// WriteResult is the {id, url} shape spec §4.2 returns from mutations.
type WriteResult struct {
	ID  string
	URL string
}
