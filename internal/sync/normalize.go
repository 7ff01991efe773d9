package sync

import (
	"fmt"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
)

// normalize converts one PR's fetched activity into entries, carrying
// the PR's scope keys (spec §3) onto every entry.
func normalize(repo string, meta entry.PRMeta, activity *ghclient.PRActivity, capturedAt time.Time) []entry.Entry {
	var out []entry.Entry

	base := func() entry.Entry {
		return entry.Entry{
			Repo:       repo,
			PR:         meta.PR,
			PRState:    meta.State,
			PRAuthor:   meta.Author,
			PRTitle:    meta.Title,
			PRBranch:   meta.Branch,
			PRLabels:   meta.Labels,
			CapturedAt: capturedAt,
		}
	}

	for _, r := range activity.Reviews {
		e := base()
		e.ID = r.ID
		e.Type = entry.TypeReview
		e.Author = r.Author
		e.Body = r.Body
		e.State = reviewState(r.State)
		e.DatabaseID = r.DatabaseID
		e.CreatedAt = r.SubmittedAt
		out = append(out, e)
	}

	for _, rc := range activity.ReviewComments {
		e := base()
		e.ID = rc.ID
		e.Type = entry.TypeComment
		e.Subtype = entry.SubtypeReviewComment
		e.Author = rc.Author
		e.Body = rc.Body
		e.File = rc.Path
		e.Line = rc.Line
		e.DatabaseID = rc.DatabaseID
		e.ThreadID = rc.ThreadID
		e.CreatedAt = rc.CreatedAt
		if rc.ThreadResolved {
			e.ThreadResolved = entry.ThreadResolvedTrue
		} else {
			e.ThreadResolved = entry.ThreadResolvedFalse
		}
		out = append(out, e)
	}

	for _, ic := range activity.IssueComments {
		e := base()
		e.ID = ic.ID
		e.Type = entry.TypeComment
		e.Subtype = entry.SubtypeIssueComment
		e.Author = ic.Author
		e.Body = ic.Body
		e.DatabaseID = ic.DatabaseID
		e.CreatedAt = ic.CreatedAt
		if len(ic.ThumbsUpBy) > 0 {
			e.Reactions = entry.Reactions{ThumbsUpBy: ic.ThumbsUpBy}
		}
		e.FileActivity = fileActivityAfter(ic.CreatedAt, activity.Commits)
		out = append(out, e)
	}

	for _, cm := range activity.Commits {
		e := base()
		e.ID = cm.SHA
		e.Type = entry.TypeCommit
		e.Author = cm.Author
		e.Body = cm.Message
		e.CreatedAt = cm.CreatedAt
		out = append(out, e)
	}

	for _, ci := range activity.CIChecks {
		e := base()
		e.ID = fmt.Sprintf("%s/%d/ci/%s", repo, meta.PR, ci.Name)
		e.Type = entry.TypeCI
		e.Author = ci.Name
		e.State = ciState(ci)
		e.CreatedAt = ci.CompletedAt
		out = append(out, e)
	}

	return out
}

func reviewState(s string) string {
	switch s {
	case "APPROVED":
		return string(entry.ReviewApproved)
	case "CHANGES_REQUESTED":
		return string(entry.ReviewChangesRequested)
	case "DISMISSED":
		return string(entry.ReviewDismissed)
	default:
		return string(entry.ReviewCommented)
	}
}

// fileActivityAfter computes the "has anything happened since this
// comment" signal the Actionable Derivation uses for issue comments
// (spec §4.6): issue comments aren't attached to a file or line, so
// file_activity_after here tracks PR-wide commit activity rather than a
// specific file's commits, the generic proxy the data model's field name
// is reused for (spec §3). Returns nil when no commit followed.
func fileActivityAfter(commentCreatedAt time.Time, commits []ghclient.CommitNode) *entry.FileActivityAfter {
	var touching int
	var latestSHA string
	var latestAt time.Time

	for _, c := range commits {
		if !c.CreatedAt.After(commentCreatedAt) {
			continue
		}
		touching++
		if c.CreatedAt.After(latestAt) {
			latestAt = c.CreatedAt
			latestSHA = c.SHA
		}
	}

	if touching == 0 {
		return nil
	}

	return &entry.FileActivityAfter{
		Modified:            true,
		CommitsTouchingFile: touching,
		LatestCommit:        latestSHA,
		LatestCommitAt:      &latestAt,
	}
}

func ciState(c ghclient.CICheckNode) string {
	if c.Status != "COMPLETED" {
		return "pending"
	}
	switch c.Conclusion {
	case "SUCCESS":
		return "success"
	case "FAILURE", "TIMED_OUT":
		return "failure"
	default:
		return "neutral"
	}
}
