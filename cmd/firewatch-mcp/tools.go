package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/outfitter-dev/firewatch-sub001/internal/actionable"
	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/feedback"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
	"github.com/outfitter-dev/firewatch-sub001/internal/shortid"
	"github.com/outfitter-dev/firewatch-sub001/internal/store"
	"github.com/outfitter-dev/firewatch-sub001/internal/sync"
	"github.com/outfitter-dev/firewatch-sub001/internal/worklist"
)

// jsonResult marshals v into a single-text-content tool result, the shape
// every read-only tool here returns (spec §6's JSON result types, carried
// over MCP instead of stdout).
func jsonResult(v interface{}) (*mcp.CallToolResult, any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, nil, internalErr("marshal result", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}, nil, nil
}

func internalErr(msg string, err error) *jsonrpc.Error {
	return &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: msg, Data: map[string]any{"error": err.Error()}}
}

func (s *server) registerTools(mcpServer *mcp.Server) {
	s.registerSyncTool(mcpServer)
	s.registerListTool(mcpServer)
	s.registerWorklistTool(mcpServer)
	s.registerActionableTool(mcpServer)
	s.registerReplyTool(mcpServer)
	s.registerResolveTool(mcpServer)
	s.registerAckTool(mcpServer)
	s.registerCloseTool(mcpServer)
}

type syncArgs struct {
	Repo  string `json:"repo,omitempty" jsonschema:"owner/name; defaults to the configured or detected repo"`
	Scope string `json:"scope,omitempty" jsonschema:"open|closed|all (default all)"`
	Full  bool   `json:"full,omitempty" jsonschema:"ignore the stored checkpoint and resync from scratch"`
}

func (s *server) registerSyncTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "sync",
		Description: "Bring the local store up to date with GitHub for a repo's open and/or closed pull requests.",
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args syncArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		scopes, err := scopesFor(args.Scope)
		if err != nil {
			return nil, nil, internalErr("parse scope", err)
		}
		mode := sync.ModeIncremental
		if args.Full {
			mode = sync.ModeFull
		}

		results := make(map[string]*sync.Result)
		for _, scope := range scopes {
			res, err := s.engine.Run(ctx, repo, scope, mode)
			if err != nil {
				return nil, nil, internalErr(fmt.Sprintf("sync %s", scope), err)
			}
			results[string(scope)] = res
		}
		return jsonResult(map[string]interface{}{"ok": true, "repo": repo, "results": results})
	})
}

func scopesFor(s string) ([]entry.Scope, error) {
	switch s {
	case "open":
		return []entry.Scope{entry.ScopeOpen}, nil
	case "closed":
		return []entry.Scope{entry.ScopeClosed}, nil
	case "", "all":
		return []entry.Scope{entry.ScopeOpen, entry.ScopeClosed}, nil
	default:
		return nil, fmt.Errorf("unknown scope %q", s)
	}
}

type queryArgs struct {
	Repo          string   `json:"repo,omitempty" jsonschema:"owner/name; defaults to the configured or detected repo"`
	PR            []int    `json:"pr,omitempty" jsonschema:"restrict to these PR numbers"`
	Type          []string `json:"type,omitempty" jsonschema:"comment|review|commit|ci|event"`
	Author        []string `json:"author,omitempty"`
	ExcludeBots   bool     `json:"exclude_bots,omitempty"`
	Label         string   `json:"label,omitempty" jsonschema:"substring match against pr_labels"`
	State         []string `json:"state,omitempty" jsonschema:"open|draft|closed|merged"`
	ExcludeStale  bool     `json:"exclude_stale,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	NoSync        bool     `json:"no_sync,omitempty" jsonschema:"fail instead of syncing stale data"`
}

func (s *server) ensureFresh(ctx context.Context, repo string, noSync bool) error {
	threshold, err := s.cfg.StaleThresholdDuration()
	if err != nil {
		return err
	}
	for _, scope := range []entry.Scope{entry.ScopeOpen, entry.ScopeClosed} {
		if err := s.engine.EnsureFresh(ctx, repo, scope, threshold, noSync); err != nil {
			return err
		}
	}
	return nil
}

func (a queryArgs) filter(repo string, cfg *server) store.Filter {
	f := store.Filter{
		Repo:         repo,
		Author:       a.Author,
		ExcludeBots:  a.ExcludeBots,
		BotPatterns:  cfg.cfg.BotPatterns(),
		Label:        a.Label,
		ExcludeStale: a.ExcludeStale,
		PR:           a.PR,
	}
	for _, t := range a.Type {
		f.Type = append(f.Type, entry.Type(t))
	}
	for _, st := range a.State {
		f.States = append(f.States, entry.PRState(st))
	}
	return f
}

func (s *server) registerListTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list_entries",
		Description: "Query stored PR activity entries (reviews, comments, commits, CI checks, events).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		if err := s.ensureFresh(ctx, repo, args.NoSync); err != nil {
			return nil, nil, internalErr("ensure fresh", err)
		}
		limit := args.Limit
		if limit == 0 {
			limit = 100
		}
		entries, err := s.st.QueryEntries(ctx, args.filter(repo, s), limit, 0)
		if err != nil {
			return nil, nil, internalErr("query entries", err)
		}
		return jsonResult(entries)
	})
}

func (s *server) registerWorklistTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "worklist",
		Description: "Return one aggregated row per pull request, ordered by most recent activity.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		if err := s.ensureFresh(ctx, repo, args.NoSync); err != nil {
			return nil, nil, internalErr("ensure fresh", err)
		}
		entries, err := s.st.QueryEntries(ctx, args.filter(repo, s), 0, 0)
		if err != nil {
			return nil, nil, internalErr("query entries", err)
		}
		return jsonResult(worklist.Build(entries))
	})
}

type actionableArgs struct {
	queryArgs
	Perspective       string `json:"perspective,omitempty" jsonschema:"mine|reviews"`
	CommitImpliesRead bool   `json:"commit_implies_read,omitempty"`
}

func (s *server) registerActionableTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "actionable",
		Description: "Derive the actionable worklist: PRs needing a reply, addressing changes requested, awaiting review, or gone stale.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true, IdempotentHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, args actionableArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		if err := s.ensureFresh(ctx, repo, args.NoSync); err != nil {
			return nil, nil, internalErr("ensure fresh", err)
		}
		entries, err := s.st.QueryEntries(ctx, args.filter(repo, s), 0, 0)
		if err != nil {
			return nil, nil, internalErr("query entries", err)
		}
		acked, err := s.st.AckedIDsFor(ctx, repo)
		if err != nil {
			return nil, nil, internalErr("acked ids", err)
		}

		items := actionable.Derive(actionable.Input{
			Entries:           entries,
			AckedIDs:          acked,
			Username:          s.cfg.User.GitHubUsername,
			CommitImpliesRead: args.CommitImpliesRead || s.cfg.Feedback.CommitImpliesRead,
			BotPatterns:       s.cfg.BotPatterns(),
			Now:               time.Now(),
		})
		items = actionable.FilterPerspective(items, s.cfg.User.GitHubUsername, actionable.Perspective(args.Perspective))
		return jsonResult(items)
	})
}

type replyArgs struct {
	Repo      string `json:"repo,omitempty"`
	PR        int    `json:"pr" jsonschema:"pull request number"`
	Body      string `json:"body" jsonschema:"comment body"`
	ThreadID  string `json:"thread_id,omitempty" jsonschema:"review thread id; posts an inline reply instead of a top-level comment"`
	InReplyTo string `json:"in_reply_to,omitempty" jsonschema:"comment id the inline reply answers, as a 5-hex short id or full node id (metadata only)"`
}

func (s *server) registerReplyTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "reply",
		Description: "Post a reply to a pull request, either as a top-level comment or inline within a review thread.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args replyArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		pipe := feedback.New(s.client, s.st)

		if args.ThreadID != "" {
			inReplyTo, err := s.resolveToFullID(ctx, repo, args.InReplyTo)
			if err != nil {
				return nil, nil, internalErr("resolve in_reply_to", err)
			}
			res, err := pipe.ReplyToThread(ctx, repo, args.PR, args.ThreadID, inReplyTo, args.Body)
			if err != nil {
				return nil, nil, internalErr("reply to thread", err)
			}
			s.shortCache.Put(res.GHID, repo, args.PR)
			return jsonResult(res)
		}

		nodeID, err := s.prNodeID(ctx, repo, args.PR)
		if err != nil {
			return nil, nil, internalErr("resolve pr node id", err)
		}
		res, err := pipe.ReplyToPR(ctx, repo, args.PR, nodeID, args.Body)
		if err != nil {
			return nil, nil, internalErr("reply to pr", err)
		}
		s.shortCache.Put(res.GHID, repo, args.PR)
		return jsonResult(res)
	})
}

type resolveArgs struct {
	Repo      string `json:"repo,omitempty"`
	PR        int    `json:"pr"`
	CommentID string `json:"comment_id" jsonschema:"5-hex short id or full node id of the review comment"`
}

func (s *server) registerResolveTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "resolve_comment",
		Description: "Resolve a review comment's thread and record a local acknowledgement.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args resolveArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		e, err := s.resolveCommentID(ctx, repo, args.CommentID)
		if err != nil {
			return nil, nil, internalErr("find comment", err)
		}
		if e.ThreadID == "" {
			return nil, nil, internalErr("resolve comment", fmt.Errorf("comment %s has no known review thread", args.CommentID))
		}
		pipe := feedback.New(s.client, s.st)
		res, err := pipe.ResolveReviewComment(ctx, repo, args.PR, e.ID, e.ThreadID, time.Now())
		if err != nil {
			return nil, nil, internalErr("resolve review comment", err)
		}
		s.shortCache.Put(e.ID, repo, args.PR)
		return jsonResult(res)
	})
}

type ackArgs struct {
	Repo      string `json:"repo,omitempty"`
	PR        int    `json:"pr"`
	CommentID string `json:"comment_id" jsonschema:"5-hex short id or full node id of the comment"`
}

func (s *server) registerAckTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "ack_comment",
		Description: "React to and acknowledge one comment (the issue-comment equivalent of resolving a thread).",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ackArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		e, err := s.resolveCommentID(ctx, repo, args.CommentID)
		if err != nil {
			return nil, nil, internalErr("find comment", err)
		}
		pipe := feedback.New(s.client, s.st)
		res, err := pipe.AckComment(ctx, repo, args.PR, e.ID, time.Now())
		if err != nil {
			return nil, nil, internalErr("ack comment", err)
		}
		s.shortCache.Put(e.ID, repo, args.PR)
		return jsonResult(res)
	})
}

type closeArgs struct {
	Repo     string `json:"repo,omitempty"`
	PR       int    `json:"pr"`
	Feedback bool   `json:"feedback,omitempty" jsonschema:"resolve/ack every unaddressed comment instead of closing the PR"`
}

func (s *server) registerCloseTool(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "close_pr",
		Description: "Close a pull request, or with feedback set, settle every unaddressed comment without closing it.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args closeArgs) (*mcp.CallToolResult, any, error) {
		repo, err := s.resolveRepo(args.Repo)
		if err != nil {
			return nil, nil, internalErr("resolve repo", err)
		}
		nodeID, err := s.prNodeID(ctx, repo, args.PR)
		if err != nil {
			return nil, nil, internalErr("resolve pr node id", err)
		}
		pipe := feedback.New(s.client, s.st)

		if !args.Feedback {
			res, err := pipe.Close(ctx, repo, args.PR, nodeID)
			if err != nil {
				return nil, nil, internalErr("close pr", err)
			}
			return jsonResult(res)
		}

		targets, err := s.unaddressedTargets(ctx, repo, args.PR)
		if err != nil {
			return nil, nil, internalErr("collect unaddressed targets", err)
		}
		res, err := pipe.CloseFeedback(ctx, repo, args.PR, targets, time.Now())
		if err != nil {
			return nil, nil, internalErr("close with feedback", err)
		}
		return jsonResult(res)
	})
}

func (s *server) prNodeID(ctx context.Context, repo string, pr int) (string, error) {
	meta, err := s.st.GetPR(ctx, repo, pr)
	if err != nil {
		return "", err
	}
	if meta != nil && meta.NodeID != "" {
		return meta.NodeID, nil
	}
	owner, name, err := ghclient.ParseRepoSlug(repo)
	if err != nil {
		return "", err
	}
	return s.client.PRNodeID(ctx, owner, name, pr)
}

// commentEntry loads one comment entry by its full node id.
func (s *server) commentEntry(ctx context.Context, repo, commentID string) (*entry.Entry, error) {
	entries, err := s.st.QueryCommentEntries(ctx, repo)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if entries[i].ID == commentID {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("comment %s not found in repo %s", commentID, repo)
}

// resolveCommentID resolves id -- a 5-hex short id or a full node id -- to
// its stored comment entry via the ID Resolution Layer (spec §4.8), so
// every feedback tool accepts both forms interchangeably (spec §1 item 5,
// §8 scenario S6).
func (s *server) resolveCommentID(ctx context.Context, repo, id string) (*entry.Entry, error) {
	results := shortid.ResolveBatch(ctx, s.shortCache, s.st, []string{id}, repo)
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
		return s.commentEntry(ctx, repo, r.ID)
	case shortid.KindFullID:
		return s.commentEntry(ctx, repo, r.ID)
	default:
		return nil, fmt.Errorf("id %q is not a recognized short id or node id", id)
	}
}

// resolveToFullID resolves a short or full id to its full node id without
// requiring a matching stored entry, for metadata-only uses such as
// reply's in_reply_to.
func (s *server) resolveToFullID(ctx context.Context, repo, id string) (string, error) {
	if id == "" {
		return "", nil
	}
	results := shortid.ResolveBatch(ctx, s.shortCache, s.st, []string{id}, repo)
	r := results[0]
	if r.Err != nil {
		return "", r.Err
	}
	if r.Kind == shortid.KindPR {
		return "", fmt.Errorf("expected a comment id, got PR number %d", r.PR)
	}
	return r.ID, nil
}

func (s *server) unaddressedTargets(ctx context.Context, repo string, pr int) ([]feedback.ThreadTarget, error) {
	entries, err := s.st.QueryEntries(ctx, store.Filter{Repo: repo, PR: []int{pr}}, 0, 0)
	if err != nil {
		return nil, err
	}
	acked, err := s.st.AckedIDsFor(ctx, repo)
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
	for _, c := range comments {
		if c.ThreadID != "" {
			threadIDs[c.ID] = c.ThreadID
		}
	}
	return feedback.TargetsFromUnaddressed(comments, threadIDs), nil
}
