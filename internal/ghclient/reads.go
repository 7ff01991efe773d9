package ghclient

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/graphql"
)

// pageSize is the page size used for the PR list query; kept modest to
// stay under GitHub's query-complexity limit (sirseer-relay's
// complexityPageSize plays the same role).
const pageSize = 50

// ListPullRequests fetches one page of pull requests in the given states
// ("OPEN", "CLOSED", "MERGED"), newest-updated first. after is the
// opaque cursor from a prior page, or "" for the first page.
func (c *Client) ListPullRequests(ctx context.Context, owner, name string, states []string, after string) (*PRPage, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				PageInfo struct {
					HasNextPage graphql.Boolean
					EndCursor   graphql.String
				}
				Nodes []struct {
					Number    graphql.Int
					ID        graphql.String
					Title     graphql.String
					State     graphql.String
					URL       graphql.String
					IsDraft   graphql.Boolean
					UpdatedAt time.Time
					Author    struct {
						Login graphql.String
					}
					HeadRefName graphql.String
					Labels      struct {
						Nodes []struct {
							Name graphql.String
						}
					} `graphql:"labels(first: 50)"`
				}
			} `graphql:"pullRequests(first: $first, after: $after, states: $states, orderBy: {field: UPDATED_AT, direction: DESC})"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	ghStates := make([]graphql.String, 0, len(states))
	for _, s := range states {
		ghStates = append(ghStates, graphql.String(s))
	}

	vars := map[string]interface{}{
		"owner":  graphql.String(owner),
		"name":   graphql.String(name),
		"first":  graphql.Int(pageSize),
		"states": ghStates,
	}
	if after != "" {
		vars["after"] = graphql.String(after)
	} else {
		vars["after"] = (*graphql.String)(nil)
	}

	var page *PRPage
	err := withRetry(ctx, func() error {
		if qerr := c.gql.Query(ctx, &query, vars); qerr != nil {
			return mapGraphQLError(qerr, fmt.Sprintf("list pull requests %s/%s", owner, name))
		}

		prs := make([]PRSummary, 0, len(query.Repository.PullRequests.Nodes))
		for _, n := range query.Repository.PullRequests.Nodes {
			labels := make([]string, 0, len(n.Labels.Nodes))
			for _, l := range n.Labels.Nodes {
				labels = append(labels, string(l.Name))
			}
			prs = append(prs, PRSummary{
				Number:    int(n.Number),
				NodeID:    string(n.ID),
				State:     string(n.State),
				Title:     string(n.Title),
				Author:    string(n.Author.Login),
				Branch:    string(n.HeadRefName),
				Labels:    labels,
				Draft:     bool(n.IsDraft),
				URL:       string(n.URL),
				UpdatedAt: n.UpdatedAt,
			})
		}
		page = &PRPage{
			PRs:         prs,
			HasNextPage: bool(query.Repository.PullRequests.PageInfo.HasNextPage),
			EndCursor:   string(query.Repository.PullRequests.PageInfo.EndCursor),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// PRNodeID fetches a PR's GraphQL node ID by its number, needed by the
// write operations that address a PR as a node rather than a number.
func (c *Client) PRNodeID(ctx context.Context, owner, name string, pr int) (string, error) {
	var query struct {
		Repository struct {
			PullRequest struct {
				ID graphql.String
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	vars := map[string]interface{}{
		"owner":  graphql.String(owner),
		"name":   graphql.String(name),
		"number": graphql.Int(pr),
	}

	var id string
	err := withRetry(ctx, func() error {
		if qerr := c.gql.Query(ctx, &query, vars); qerr != nil {
			return mapGraphQLError(qerr, fmt.Sprintf("fetch PR node id %s/%s#%d", owner, name, pr))
		}
		id = string(query.Repository.PullRequest.ID)
		return nil
	})
	return id, err
}

// FetchPRActivity fetches every child collection attached to a PR:
// reviews, review comments (with thread resolution), issue comments (with
// thumbs-up reactors), commits, and CI check runs on the head commit.
func (c *Client) FetchPRActivity(ctx context.Context, owner, name string, pr int) (*PRActivity, error) {
	var query struct {
		Repository struct {
			PullRequest struct {
				Reviews struct {
					Nodes []struct {
						ID          graphql.String
						DatabaseID  graphql.Int
						Author      struct{ Login graphql.String }
						State       graphql.String
						Body        graphql.String
						SubmittedAt time.Time
					}
				} `graphql:"reviews(first: 100)"`

				ReviewThreads struct {
					Nodes []struct {
						ID         graphql.String
						IsResolved graphql.Boolean
						Comments   struct {
							Nodes []struct {
								ID         graphql.String
								DatabaseID graphql.Int
								Author     struct{ Login graphql.String }
								Body       graphql.String
								Path       graphql.String
								Line       *graphql.Int
								CreatedAt  time.Time
							}
						} `graphql:"comments(first: 50)"`
					}
				} `graphql:"reviewThreads(first: 100)"`

				Comments struct {
					Nodes []struct {
						ID         graphql.String
						DatabaseID graphql.Int
						Author     struct{ Login graphql.String }
						Body       graphql.String
						CreatedAt  time.Time
						Reactions  struct {
							Nodes []struct {
								Content graphql.String
								User    struct{ Login graphql.String }
							}
						} `graphql:"reactions(first: 100, content: THUMBS_UP)"`
					}
				} `graphql:"comments(first: 100)"`

				Commits struct {
					Nodes []struct {
						Commit struct {
							OID           graphql.String
							Message       graphql.String
							CommittedDate time.Time
							Author        struct {
								User *struct{ Login graphql.String }
								Name graphql.String
							}
						}
					}
				} `graphql:"commits(first: 100)"`

				HeadRef struct {
					Target struct {
						Commit struct {
							CheckSuites struct {
								Nodes []struct {
									CheckRuns struct {
										Nodes []struct {
											Name        graphql.String
											Status      graphql.String
											Conclusion  graphql.String
											CompletedAt time.Time
										}
									} `graphql:"checkRuns(first: 50)"`
								}
							} `graphql:"checkSuites(first: 20)"`
						} `graphql:"... on Commit"`
					}
				} `graphql:"headRef"`
			} `graphql:"pullRequest(number: $number)"`
		} `graphql:"repository(owner: $owner, name: $name)"`
	}

	vars := map[string]interface{}{
		"owner":  graphql.String(owner),
		"name":   graphql.String(name),
		"number": graphql.Int(pr),
	}

	activity := &PRActivity{}
	err := withRetry(ctx, func() error {
		if qerr := c.gql.Query(ctx, &query, vars); qerr != nil {
			return mapGraphQLError(qerr, fmt.Sprintf("fetch PR activity %s/%s#%d", owner, name, pr))
		}

		p := query.Repository.PullRequest

		for _, r := range p.Reviews.Nodes {
			activity.Reviews = append(activity.Reviews, ReviewNode{
				ID:          string(r.ID),
				DatabaseID:  int64(r.DatabaseID),
				Author:      string(r.Author.Login),
				State:       string(r.State),
				Body:        string(r.Body),
				SubmittedAt: r.SubmittedAt,
			})
		}

		for _, thread := range p.ReviewThreads.Nodes {
			for _, rc := range thread.Comments.Nodes {
				line := 0
				if rc.Line != nil {
					line = int(*rc.Line)
				}
				activity.ReviewComments = append(activity.ReviewComments, ReviewCommentNode{
					ID:             string(rc.ID),
					DatabaseID:     int64(rc.DatabaseID),
					Author:         string(rc.Author.Login),
					Body:           string(rc.Body),
					Path:           string(rc.Path),
					Line:           line,
					CreatedAt:      rc.CreatedAt,
					ThreadID:       string(thread.ID),
					ThreadResolved: bool(thread.IsResolved),
				})
			}
		}

		for _, ic := range p.Comments.Nodes {
			var thumbsUp []string
			for _, reaction := range ic.Reactions.Nodes {
				if string(reaction.Content) == "THUMBS_UP" {
					thumbsUp = append(thumbsUp, string(reaction.User.Login))
				}
			}
			activity.IssueComments = append(activity.IssueComments, IssueCommentNode{
				ID:         string(ic.ID),
				DatabaseID: int64(ic.DatabaseID),
				Author:     string(ic.Author.Login),
				Body:       string(ic.Body),
				CreatedAt:  ic.CreatedAt,
				ThumbsUpBy: thumbsUp,
			})
		}

		for _, cn := range p.Commits.Nodes {
			author := string(cn.Commit.Author.Name)
			if cn.Commit.Author.User != nil {
				author = string(cn.Commit.Author.User.Login)
			}
			activity.Commits = append(activity.Commits, CommitNode{
				SHA:       string(cn.Commit.OID),
				Author:    author,
				Message:   string(cn.Commit.Message),
				CreatedAt: cn.Commit.CommittedDate,
			})
		}

		for _, suite := range p.HeadRef.Target.Commit.CheckSuites.Nodes {
			for _, run := range suite.CheckRuns.Nodes {
				activity.CIChecks = append(activity.CIChecks, CICheckNode{
					Name:        string(run.Name),
					Status:      string(run.Status),
					Conclusion:  string(run.Conclusion),
					CompletedAt: run.CompletedAt,
				})
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return activity, nil
}
