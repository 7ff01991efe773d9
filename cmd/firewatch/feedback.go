package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/feedback"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
	"github.com/outfitter-dev/firewatch-sub001/internal/shortid"
	"github.com/outfitter-dev/firewatch-sub001/internal/store"
)

func storeFilterForPR(repo string, pr int) store.Filter {
	return store.Filter{Repo: repo, PR: []int{pr}}
}

// prNodeID resolves a PR number to the node ID the GraphQL write mutations
// need, consulting the store first before falling back to a live lookup.
func prNodeID(c *cli.Context, a *app, pr int) (string, error) {
	meta, err := a.st.GetPR(c.Context, a.repo, pr)
	if err != nil {
		return "", err
	}
	if meta != nil && meta.NodeID != "" {
		return meta.NodeID, nil
	}
	owner, name, err := ghclient.ParseRepoSlug(a.repo)
	if err != nil {
		return "", err
	}
	return a.client.PRNodeID(c.Context, owner, name, pr)
}

// resolveCommentID resolves id -- a 5-hex short id or a full node id -- to
// its stored comment entry via the ID Resolution Layer (spec §4.8), so
// every feedback command accepts both comment forms interchangeably. A PR
// number is rejected with an error.
func resolveCommentID(c *cli.Context, a *app, id string) (*entry.Entry, error) {
	results := shortid.ResolveBatch(c.Context, a.shortCache, a.st, []string{id}, a.repo)
	r := results[0]
	if r.Err != nil {
		return nil, r.Err
	}
	switch r.Kind {
	case shortid.KindPR:
		return nil, fmt.Errorf("expected a comment id, got PR number %d", r.PR)
	case shortid.KindShortID:
		if r.Entry != nil {
			return r.Entry, nil
		}
		return commentEntry(c, a, r.ID)
	case shortid.KindFullID:
		return commentEntry(c, a, r.ID)
	default:
		return nil, fmt.Errorf("id %q is not a recognized PR number, short id, or node id", id)
	}
}

// resolveToFullID resolves a short or full id to its full node id without
// requiring a matching stored entry, for metadata-only uses such as
// reply --in-reply-to.
func resolveToFullID(c *cli.Context, a *app, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	results := shortid.ResolveBatch(c.Context, a.shortCache, a.st, []string{id}, a.repo)
	r := results[0]
	if r.Err != nil {
		return "", r.Err
	}
	if r.Kind == shortid.KindPR {
		return "", fmt.Errorf("expected a comment id, got PR number %d", r.PR)
	}
	return r.ID, nil
}

func replyCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "reply",
		Usage:     "post a reply to a PR or an inline review thread",
		ArgsUsage: "<pr> <body>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "thread", Usage: "review thread id; posts an inline reply instead of a top-level comment"},
			&cli.StringFlag{Name: "in-reply-to", Usage: "comment id the inline reply answers (metadata only)"},
		},
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("reply: first argument must be a PR number: %w", err)
			}
			body := c.Args().Get(1)
			if body == "" {
				return fmt.Errorf("reply: a body argument is required")
			}

			pipe := feedback.New(a.client, a.st)

			if thread := c.String("thread"); thread != "" {
				inReplyTo, err := resolveToFullID(c, a, c.String("in-reply-to"))
				if err != nil {
					return err
				}
				res, err := pipe.ReplyToThread(c.Context, a.repo, pr, thread, inReplyTo, body)
				if err != nil {
					return err
				}
				a.shortCache.Put(res.GHID, a.repo, pr)
				return emit(res)
			}

			nodeID, err := prNodeID(c, a, pr)
			if err != nil {
				return err
			}
			res, err := pipe.ReplyToPR(c.Context, a.repo, pr, nodeID, body)
			if err != nil {
				return err
			}
			a.shortCache.Put(res.GHID, a.repo, pr)
			return emit(res)
		},
	}
}

func resolveCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "resolve a review comment's thread and ack it",
		ArgsUsage: "<pr> <comment-id>",
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("resolve: first argument must be a PR number: %w", err)
			}
			commentID := c.Args().Get(1)
			if commentID == "" {
				return fmt.Errorf("resolve: a comment id argument is required")
			}

			e, err := resolveCommentID(c, a, commentID)
			if err != nil {
				return err
			}
			if e.ThreadID == "" {
				return fmt.Errorf("resolve: comment %s has no known review thread (is it an issue comment? use ack instead)", commentID)
			}

			pipe := feedback.New(a.client, a.st)
			res, err := pipe.ResolveReviewComment(c.Context, a.repo, pr, e.ID, e.ThreadID, time.Now())
			if err != nil {
				return err
			}
			a.shortCache.Put(e.ID, a.repo, pr)
			return emit(res)
		},
	}
}

func ackCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "ack",
		Usage:     "react to and acknowledge one comment",
		ArgsUsage: "<pr> <comment-id>",
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("ack: first argument must be a PR number: %w", err)
			}
			commentID := c.Args().Get(1)
			if commentID == "" {
				return fmt.Errorf("ack: a comment id argument is required")
			}

			e, err := resolveCommentID(c, a, commentID)
			if err != nil {
				return err
			}

			pipe := feedback.New(a.client, a.st)
			res, err := pipe.AckComment(c.Context, a.repo, pr, e.ID, time.Now())
			if err != nil {
				return err
			}
			a.shortCache.Put(e.ID, a.repo, pr)
			return emit(res)
		},
	}
}

func bulkAckCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "bulk-ack",
		Usage:     "ack every unaddressed comment on a PR",
		ArgsUsage: "<pr>",
		Action: func(c *cli.Context) error {
			pr, err := strconv.Atoi(c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("bulk-ack: argument must be a PR number: %w", err)
			}

			targets, err := unaddressedTargets(c, a, pr)
			if err != nil {
				return err
			}

			pipe := feedback.New(a.client, a.st)
			res, err := pipe.BulkAck(c.Context, a.repo, pr, targets, time.Now())
			if err != nil {
				return err
			}
			if err := emit(res); err != nil {
				return err
			}
			if !res.OK && res.AckedCount > 0 {
				return partialFailure("bulk-ack: %d of %d targets failed", res.FailedCount, res.FailedCount+res.AckedCount)
			}
			if !res.OK {
				return fmt.Errorf("bulk-ack: all %d targets failed", res.FailedCount)
			}
			return nil
		},
	}
}

func closeCommand(a *app) *cli.Command {
	return &cli.Command{
		Name:      "close",
		Usage:     "close a pull request, or resolve/ack a single comment",
		ArgsUsage: "<pr|comment-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "feedback", Usage: "resolve/ack every unaddressed comment instead of closing the PR (PR targets only)"},
		},
		Action: func(c *cli.Context) error {
			target := c.Args().Get(0)
			if target == "" {
				return fmt.Errorf("close: a PR number or comment id argument is required")
			}

			results := shortid.ResolveBatch(c.Context, a.shortCache, a.st, []string{target}, a.repo)
			r := results[0]
			if r.Err != nil {
				return r.Err
			}

			pipe := feedback.New(a.client, a.st)

			switch r.Kind {
			case shortid.KindPR:
				pr := r.PR
				nodeID, err := prNodeID(c, a, pr)
				if err != nil {
					return err
				}
				if !c.Bool("feedback") {
					res, err := pipe.Close(c.Context, a.repo, pr, nodeID)
					if err != nil {
						return err
					}
					return emit(res)
				}
				targets, err := unaddressedTargets(c, a, pr)
				if err != nil {
					return err
				}
				res, err := pipe.CloseFeedback(c.Context, a.repo, pr, targets, time.Now())
				if err != nil {
					return err
				}
				return emit(res)

			case shortid.KindShortID, shortid.KindFullID:
				e, err := resolveCommentID(c, a, target)
				if err != nil {
					return err
				}
				if e.Subtype == entry.SubtypeReviewComment && e.ThreadID != "" {
					res, err := pipe.ResolveReviewComment(c.Context, a.repo, e.PR, e.ID, e.ThreadID, time.Now())
					if err != nil {
						return err
					}
					a.shortCache.Put(e.ID, a.repo, e.PR)
					return emit(res)
				}
				res, err := pipe.AckComment(c.Context, a.repo, e.PR, e.ID, time.Now())
				if err != nil {
					return err
				}
				a.shortCache.Put(e.ID, a.repo, e.PR)
				return emit(res)

			default:
				return fmt.Errorf("close: %q is not a recognized PR number, short id, or node id", target)
			}
		},
	}
}

// commentEntry loads one comment entry by its full node id, used when a
// command needs its thread id or subtype.
func commentEntry(c *cli.Context, a *app, commentID string) (*entry.Entry, error) {
	entries, err := a.st.QueryCommentEntries(c.Context, a.repo)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == commentID {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("comment %s not found in repo %s", commentID, a.repo)
}

// unaddressedTargets collects pr's comment entries that have no local ack
// and, for review comments, whose thread is not known to be resolved, and
// converts them into feedback.ThreadTarget values. It does not apply the
// actionable derivation's other rules: self-comments, bot comments, and
// issue comments addressed by a reaction or by later commits are still
// included.
func unaddressedTargets(c *cli.Context, a *app, pr int) ([]feedback.ThreadTarget, error) {
	entries, err := a.st.QueryEntries(c.Context, storeFilterForPR(a.repo, pr), 0, 0)
	if err != nil {
		return nil, err
	}
	acked, err := a.st.AckedIDsFor(c.Context, a.repo)
	if err != nil {
		return nil, err
	}

	var comments []entry.Entry
	for _, e := range entries {
		if e.Type != entry.TypeComment || acked[e.ID] {
			continue
		}
		if e.Subtype == entry.SubtypeReviewComment && e.ThreadResolved == entry.ThreadResolvedTrue {
			continue
		}
		comments = append(comments, e)
	}

	threadIDs := make(map[string]string, len(comments))
	for _, cm := range comments {
		if cm.ThreadID != "" {
			threadIDs[cm.ID] = cm.ThreadID
		}
	}
	return feedback.TargetsFromUnaddressed(comments, threadIDs), nil
}
