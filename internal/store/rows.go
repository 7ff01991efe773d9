package store

import (
	"encoding/json"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// entryRow is the flat sqlite row shape for an entry.Entry: structured
// sub-fields (labels, reactions, file activity, graphite) are stored as
// JSON text columns, the same "dynamic structural types become explicit
// option types with JSON serialisation" approach spec §9 calls for.
type entryRow struct {
	ID             string `db:"id"`
	Repo           string `db:"repo"`
	PR             int    `db:"pr"`
	PRState        string `db:"pr_state"`
	PRAuthor       string `db:"pr_author"`
	PRTitle        string `db:"pr_title"`
	PRBranch       string `db:"pr_branch"`
	PRLabels       string `db:"pr_labels"`
	Type           string `db:"type"`
	Subtype        string `db:"subtype"`
	Author         string `db:"author"`
	AuthorLogin    string `db:"author_login"`
	Body           string `db:"body"`
	State          string `db:"state"`
	File           string `db:"file"`
	Line           int    `db:"line"`
	DatabaseID     int64  `db:"database_id"`
	ThreadID       string `db:"thread_id"`
	ThreadResolved int    `db:"thread_resolved"`
	FileActivity   string `db:"file_activity"`
	Reactions      string `db:"reactions"`
	CreatedAt      string `db:"created_at"`
	CapturedAt     string `db:"captured_at"`
	Graphite       string `db:"graphite"`
}

func entryToRow(e entry.Entry) entryRow {
	labels, _ := json.Marshal(e.PRLabels)
	var fileActivity string
	if e.FileActivity != nil {
		b, _ := json.Marshal(e.FileActivity)
		fileActivity = string(b)
	}
	var reactions string
	if len(e.Reactions.ThumbsUpBy) > 0 {
		b, _ := json.Marshal(e.Reactions)
		reactions = string(b)
	}
	var graphite string
	if e.Graphite != nil {
		b, _ := json.Marshal(e.Graphite)
		graphite = string(b)
	}

	return entryRow{
		ID:             e.ID,
		Repo:           e.Repo,
		PR:             e.PR,
		PRState:        string(e.PRState),
		PRAuthor:       e.PRAuthor,
		PRTitle:        e.PRTitle,
		PRBranch:       e.PRBranch,
		PRLabels:       string(labels),
		Type:           string(e.Type),
		Subtype:        string(e.Subtype),
		Author:         e.Author,
		AuthorLogin:    e.AuthorLogin,
		Body:           e.Body,
		State:          e.State,
		File:           e.File,
		Line:           e.Line,
		DatabaseID:     e.DatabaseID,
		ThreadID:       e.ThreadID,
		ThreadResolved: int(e.ThreadResolved),
		FileActivity:   fileActivity,
		Reactions:      reactions,
		CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
		CapturedAt:     e.CapturedAt.UTC().Format(time.RFC3339Nano),
		Graphite:       graphite,
	}
}

func (r entryRow) toEntry() (entry.Entry, error) {
	e := entry.Entry{
		ID:             r.ID,
		Repo:           r.Repo,
		PR:             r.PR,
		PRState:        entry.PRState(r.PRState),
		PRAuthor:       r.PRAuthor,
		PRTitle:        r.PRTitle,
		PRBranch:       r.PRBranch,
		Type:           entry.Type(r.Type),
		Subtype:        entry.Subtype(r.Subtype),
		Author:         r.Author,
		AuthorLogin:    r.AuthorLogin,
		Body:           r.Body,
		State:          r.State,
		File:           r.File,
		Line:           r.Line,
		DatabaseID:     r.DatabaseID,
		ThreadID:       r.ThreadID,
		ThreadResolved: entry.ThreadResolved(r.ThreadResolved),
	}

	if r.PRLabels != "" {
		if err := json.Unmarshal([]byte(r.PRLabels), &e.PRLabels); err != nil {
			return entry.Entry{}, err
		}
	}
	if r.FileActivity != "" {
		var fa entry.FileActivityAfter
		if err := json.Unmarshal([]byte(r.FileActivity), &fa); err != nil {
			return entry.Entry{}, err
		}
		e.FileActivity = &fa
	}
	if r.Reactions != "" {
		if err := json.Unmarshal([]byte(r.Reactions), &e.Reactions); err != nil {
			return entry.Entry{}, err
		}
	}
	if r.Graphite != "" {
		var g entry.GraphiteInfo
		if err := json.Unmarshal([]byte(r.Graphite), &g); err != nil {
			return entry.Entry{}, err
		}
		e.Graphite = &g
	}

	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return entry.Entry{}, err
	}
	capturedAt, err := time.Parse(time.RFC3339Nano, r.CapturedAt)
	if err != nil {
		return entry.Entry{}, err
	}
	e.CreatedAt = createdAt
	e.CapturedAt = capturedAt

	return e, nil
}

type prMetaRow struct {
	Repo   string `db:"repo"`
	PR     int    `db:"pr"`
	State  string `db:"state"`
	Title  string `db:"title"`
	Author string `db:"author"`
	Branch string `db:"branch"`
	Labels string `db:"labels"`
	Draft  int    `db:"draft"`
	NodeID string `db:"node_id"`
	URL    string `db:"url"`
}

func prMetaToRow(m entry.PRMeta) prMetaRow {
	labels, _ := json.Marshal(m.Labels)
	draft := 0
	if m.Draft {
		draft = 1
	}
	return prMetaRow{
		Repo: m.Repo, PR: m.PR, State: string(m.State), Title: m.Title,
		Author: m.Author, Branch: m.Branch, Labels: string(labels),
		Draft: draft, NodeID: m.NodeID, URL: m.URL,
	}
}

func (r prMetaRow) toPRMeta() entry.PRMeta {
	m := entry.PRMeta{
		Repo: r.Repo, PR: r.PR, State: entry.PRState(r.State), Title: r.Title,
		Author: r.Author, Branch: r.Branch, Draft: r.Draft != 0,
		NodeID: r.NodeID, URL: r.URL,
	}
	if r.Labels != "" {
		json.Unmarshal([]byte(r.Labels), &m.Labels)
	}
	return m
}

type syncMetaRow struct {
	Repo     string `db:"repo"`
	Scope    string `db:"scope"`
	LastSync string `db:"last_sync"`
	PRCount  int    `db:"pr_count"`
	Cursor   string `db:"cursor"`
}

func (r syncMetaRow) toSyncMeta() entry.SyncMeta {
	t, _ := time.Parse(time.RFC3339Nano, r.LastSync)
	return entry.SyncMeta{
		Repo: r.Repo, Scope: entry.Scope(r.Scope), LastSync: t,
		PRCount: r.PRCount, Cursor: r.Cursor,
	}
}

type freezeRow struct {
	Repo     string `db:"repo"`
	PR       int    `db:"pr"`
	FrozenAt string `db:"frozen_at"`
}

func (r freezeRow) toFreezeRecord() entry.FreezeRecord {
	t, _ := time.Parse(time.RFC3339Nano, r.FrozenAt)
	return entry.FreezeRecord{Repo: r.Repo, PR: r.PR, FrozenAt: t}
}

type ackRow struct {
	Repo          string `db:"repo"`
	CommentID     string `db:"comment_id"`
	PR            int    `db:"pr"`
	AckedAt       string `db:"acked_at"`
	AckedBy       string `db:"acked_by"`
	ReactionAdded int    `db:"reaction_added"`
}

func ackToRow(a entry.AckRecord) ackRow {
	reaction := 0
	if a.ReactionAdded {
		reaction = 1
	}
	return ackRow{
		Repo: a.Repo, CommentID: a.CommentID, PR: a.PR,
		AckedAt: a.AckedAt.UTC().Format(time.RFC3339Nano),
		AckedBy: a.AckedBy, ReactionAdded: reaction,
	}
}
