package ghclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v68/github"
	"github.com/shurcooL/graphql"

	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// AddReview submits a PR review. event is one of "approve",
// "request-changes", "comment".
func (c *Client) AddReview(ctx context.Context, prNodeID string, event string, body string) (*WriteResult, error) {
	ghEvent, err := reviewEvent(event)
	if err != nil {
		return nil, err
	}

	var m struct {
		AddPullRequestReview struct {
			PullRequestReview struct {
				ID  graphql.String
				URL graphql.String
			}
		} `graphql:"addPullRequestReview(input: $input)"`
	}
	input := map[string]interface{}{
		"pullRequestId": graphql.ID(prNodeID),
		"event":         ghEvent,
	}
	if body != "" {
		input["body"] = graphql.String(body)
	}

	var res *WriteResult
	err = withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "add review")
		}
		res = &WriteResult{
			ID:  string(m.AddPullRequestReview.PullRequestReview.ID),
			URL: string(m.AddPullRequestReview.PullRequestReview.URL),
		}
		return nil
	})
	return res, err
}

func reviewEvent(event string) (graphql.String, error) {
	switch event {
	case "approve":
		return "APPROVE", nil
	case "request-changes":
		return "REQUEST_CHANGES", nil
	case "comment":
		return "COMMENT", nil
	default:
		return "", &ferrors.ValidationError{Field: "event", Msg: "must be approve, request-changes, or comment"}
	}
}

// AddIssueComment posts a top-level (conversation tab) comment on a PR.
func (c *Client) AddIssueComment(ctx context.Context, prNodeID, body string) (*WriteResult, error) {
	var m struct {
		AddComment struct {
			CommentEdge struct {
				Node struct {
					ID  graphql.String
					URL graphql.String
				}
			}
		} `graphql:"addComment(input: $input)"`
	}
	input := githubAddCommentInput{SubjectID: graphql.ID(prNodeID), Body: graphql.String(body)}

	var res *WriteResult
	err := withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "add issue comment")
		}
		res = &WriteResult{
			ID:  string(m.AddComment.CommentEdge.Node.ID),
			URL: string(m.AddComment.CommentEdge.Node.URL),
		}
		return nil
	})
	return res, err
}

type githubAddCommentInput struct {
	SubjectID graphql.ID     `json:"subjectId"`
	Body      graphql.String `json:"body"`
}

// AddReviewThreadReply replies inline within an existing review thread.
func (c *Client) AddReviewThreadReply(ctx context.Context, threadID, body string) (*WriteResult, error) {
	var m struct {
		AddPullRequestReviewThreadReply struct {
			Comment struct {
				ID  graphql.String
				URL graphql.String
			}
		} `graphql:"addPullRequestReviewThreadReply(input: $input)"`
	}
	input := map[string]interface{}{
		"pullRequestReviewThreadId": graphql.ID(threadID),
		"body":                      graphql.String(body),
	}

	var res *WriteResult
	err := withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "add review thread reply")
		}
		res = &WriteResult{
			ID:  string(m.AddPullRequestReviewThreadReply.Comment.ID),
			URL: string(m.AddPullRequestReviewThreadReply.Comment.URL),
		}
		return nil
	})
	return res, err
}

// ResolveReviewThread marks a review thread resolved.
func (c *Client) ResolveReviewThread(ctx context.Context, threadID string) error {
	var m struct {
		ResolveReviewThread struct {
			Thread struct {
				ID graphql.String
			}
		} `graphql:"resolveReviewThread(input: $input)"`
	}
	input := map[string]interface{}{"threadId": graphql.ID(threadID)}
	return withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "resolve review thread")
		}
		return nil
	})
}

// AddReaction adds a reaction to a comment. Duplicate-reaction errors are
// treated as success per spec §4.2.
func (c *Client) AddReaction(ctx context.Context, commentNodeID, content string) error {
	var m struct {
		AddReaction struct {
			Subject struct {
				ID graphql.String
			}
		} `graphql:"addReaction(input: $input)"`
	}
	input := map[string]interface{}{
		"subjectId": graphql.ID(commentNodeID),
		"content":   graphql.String(content),
	}
	err := withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "add reaction")
		}
		return nil
	})
	var conflict *ferrors.ConflictError
	if errors.As(err, &conflict) {
		return nil
	}
	return err
}

// AddLabels adds labels to a PR by number (REST, matches labels verbatim).
func (c *Client) AddLabels(ctx context.Context, owner, name string, pr int, labels []string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.AddLabelsToIssue(ctx, owner, name, pr, labels)
		return mapRESTError(err, "add labels")
	})
}

// RemoveLabels removes labels from a PR by number, ignoring labels the PR
// does not currently carry.
func (c *Client) RemoveLabels(ctx context.Context, owner, name string, pr int, labels []string) error {
	for _, label := range labels {
		err := withRetry(ctx, func() error {
			_, err := c.rest.Issues.RemoveLabelForIssue(ctx, owner, name, pr, label)
			return mapRESTError(err, "remove label "+label)
		})
		var nf *ferrors.NotFoundError
		if err != nil && !errors.As(err, &nf) {
			return err
		}
	}
	return nil
}

// RequestReviewers requests the given user logins as reviewers.
func (c *Client) RequestReviewers(ctx context.Context, owner, name string, pr int, logins []string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.PullRequests.RequestReviewers(ctx, owner, name, pr, github.ReviewersRequest{Reviewers: logins})
		return mapRESTError(err, "request reviewers")
	})
}

// RemoveReviewers removes the given user logins from the reviewer set.
func (c *Client) RemoveReviewers(ctx context.Context, owner, name string, pr int, logins []string) error {
	return withRetry(ctx, func() error {
		_, err := c.rest.PullRequests.RemoveReviewers(ctx, owner, name, pr, github.ReviewersRequest{Reviewers: logins})
		return mapRESTError(err, "remove reviewers")
	})
}

// AddAssignees adds assignees to a PR's underlying issue.
func (c *Client) AddAssignees(ctx context.Context, owner, name string, pr int, logins []string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.AddAssignees(ctx, owner, name, pr, logins)
		return mapRESTError(err, "add assignees")
	})
}

// RemoveAssignees removes assignees from a PR's underlying issue.
func (c *Client) RemoveAssignees(ctx context.Context, owner, name string, pr int, logins []string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.RemoveAssignees(ctx, owner, name, pr, logins)
		return mapRESTError(err, "remove assignees")
	})
}

// SetMilestone assigns a milestone by number.
func (c *Client) SetMilestone(ctx context.Context, owner, name string, pr int, milestone int) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.Edit(ctx, owner, name, pr, &github.IssueRequest{Milestone: &milestone})
		return mapRESTError(err, "set milestone")
	})
}

// ClearMilestone removes any milestone assignment.
func (c *Client) ClearMilestone(ctx context.Context, owner, name string, pr int) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.RemoveMilestone(ctx, owner, name, pr)
		return mapRESTError(err, "clear milestone")
	})
}

// EditPullRequestInput holds the optional fields edit_pull_request may
// change.
type EditPullRequestInput struct {
	Title *string
	Body  *string
	Base  *string
}

// EditPullRequest updates a PR's title, body, and/or base branch.
func (c *Client) EditPullRequest(ctx context.Context, owner, name string, pr int, in EditPullRequestInput) error {
	req := &github.PullRequest{}
	if in.Title != nil {
		req.Title = in.Title
	}
	if in.Body != nil {
		req.Body = in.Body
	}
	if in.Base != nil {
		req.Base = &github.PullRequestBranch{Ref: in.Base}
	}
	return withRetry(ctx, func() error {
		_, _, err := c.rest.PullRequests.Edit(ctx, owner, name, pr, req)
		return mapRESTError(err, "edit pull request")
	})
}

// ConvertToDraft converts an open PR to draft.
func (c *Client) ConvertToDraft(ctx context.Context, prNodeID string) error {
	var m struct {
		ConvertPullRequestToDraft struct {
			PullRequest struct{ ID graphql.String }
		} `graphql:"convertPullRequestToDraft(input: $input)"`
	}
	input := map[string]interface{}{"pullRequestId": graphql.ID(prNodeID)}
	return withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "convert to draft")
		}
		return nil
	})
}

// MarkReady marks a draft PR ready for review.
func (c *Client) MarkReady(ctx context.Context, prNodeID string) error {
	var m struct {
		MarkPullRequestReadyForReview struct {
			PullRequest struct{ ID graphql.String }
		} `graphql:"markPullRequestReadyForReview(input: $input)"`
	}
	input := map[string]interface{}{"pullRequestId": graphql.ID(prNodeID)}
	return withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "mark ready for review")
		}
		return nil
	})
}

// ClosePullRequest closes a PR without merging.
func (c *Client) ClosePullRequest(ctx context.Context, prNodeID string) error {
	var m struct {
		ClosePullRequest struct {
			PullRequest struct{ ID graphql.String }
		} `graphql:"closePullRequest(input: $input)"`
	}
	input := map[string]interface{}{"pullRequestId": graphql.ID(prNodeID)}
	return withRetry(ctx, func() error {
		if merr := c.gql.Mutate(ctx, &m, input, nil); merr != nil {
			return mapGraphQLError(merr, "close pull request")
		}
		return nil
	})
}

// EditIssueComment edits a top-level comment by its REST (database) ID.
func (c *Client) EditIssueComment(ctx context.Context, owner, name string, databaseID int64, body string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.Issues.EditComment(ctx, owner, name, databaseID, &github.IssueComment{Body: &body})
		return mapRESTError(err, "edit issue comment")
	})
}

// DeleteIssueComment deletes a top-level comment by its REST (database) ID.
func (c *Client) DeleteIssueComment(ctx context.Context, owner, name string, databaseID int64) error {
	return withRetry(ctx, func() error {
		_, err := c.rest.Issues.DeleteComment(ctx, owner, name, databaseID)
		return mapRESTError(err, "delete issue comment")
	})
}

// EditReviewComment edits an inline review comment by its REST (database)
// ID.
func (c *Client) EditReviewComment(ctx context.Context, owner, name string, databaseID int64, body string) error {
	return withRetry(ctx, func() error {
		_, _, err := c.rest.PullRequests.EditComment(ctx, owner, name, databaseID, &github.PullRequestComment{Body: &body})
		return mapRESTError(err, "edit review comment")
	})
}

// DeleteReviewComment deletes an inline review comment by its REST
// (database) ID.
func (c *Client) DeleteReviewComment(ctx context.Context, owner, name string, databaseID int64) error {
	return withRetry(ctx, func() error {
		_, err := c.rest.PullRequests.DeleteComment(ctx, owner, name, databaseID)
		return mapRESTError(err, "delete review comment")
	})
}

// ParseRepoSlug splits "owner/name" into its two parts.
func ParseRepoSlug(slug string) (owner, name string, err error) {
	o, n, ok := strings.Cut(slug, "/")
	if !ok || o == "" || n == "" {
		return "", "", &ferrors.ValidationError{Field: "repo", Msg: fmt.Sprintf("%q is not an owner/name slug", slug)}
	}
	return o, n, nil
}
