// Package store is Firewatch's embedded relational store: entries, PR
// metadata, sync checkpoints, acks, and freeze rows (spec §4.1). It is
// backed by modernc.org/sqlite (pure-Go, no cgo) queried through
// jmoiron/sqlx, the pairing the retrieval pack uses for exactly this job
// (see DESIGN.md). The teacher carries no persistent store of this shape
// (its caches are flat JSON files); the schema and query patterns here are
// grounded on the pack's sqlite-backed store examples instead.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// Store serialises writes through a single writer lane and allows
// concurrent reads, matching spec §5's concurrency model.
type Store struct {
	db      *sqlx.DB
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the sqlite database at path and
// applies the schema. path may be ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &ferrors.StoreError{Op: "open", Err: err}
	}
	// The sqlite driver does not support concurrent writers regardless of
	// WAL mode; Store.writeMu is the real serialisation point, but capping
	// the pool avoids "database is locked" on the driver side too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &ferrors.StoreError{Op: "migrate", Err: err}
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withWriteTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return &ferrors.StoreError{Op: "begin tx", Err: err}
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &ferrors.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// UpsertEntries idempotently upserts entries keyed by (repo, id): the
// first-seen captured_at is preserved, content fields are overwritten
// (spec §3 invariants, §8 property 4).
func (s *Store) UpsertEntries(ctx context.Context, entries []entry.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		for _, e := range entries {
			if err := upsertEntry(tx, e); err != nil {
				return &ferrors.StoreError{Op: fmt.Sprintf("upsert entry %s/%s", e.Repo, e.ID), Err: err}
			}
		}
		return nil
	})
}

func upsertEntry(tx *sqlx.Tx, e entry.Entry) error {
	row := entryToRow(e)
	_, err := tx.NamedExec(`
		INSERT INTO entries (
			id, repo, pr, pr_state, pr_author, pr_title, pr_branch, pr_labels,
			type, subtype, author, author_login, body, state, file, line,
			database_id, thread_id, thread_resolved, file_activity, reactions,
			created_at, captured_at, graphite
		) VALUES (
			:id, :repo, :pr, :pr_state, :pr_author, :pr_title, :pr_branch, :pr_labels,
			:type, :subtype, :author, :author_login, :body, :state, :file, :line,
			:database_id, :thread_id, :thread_resolved, :file_activity, :reactions,
			:created_at, :captured_at, :graphite
		)
		ON CONFLICT (repo, id) DO UPDATE SET
			pr = excluded.pr,
			pr_state = excluded.pr_state,
			pr_author = excluded.pr_author,
			pr_title = excluded.pr_title,
			pr_branch = excluded.pr_branch,
			pr_labels = excluded.pr_labels,
			type = excluded.type,
			subtype = excluded.subtype,
			author = excluded.author,
			author_login = excluded.author_login,
			body = excluded.body,
			state = excluded.state,
			file = excluded.file,
			line = excluded.line,
			database_id = excluded.database_id,
			thread_id = excluded.thread_id,
			thread_resolved = excluded.thread_resolved,
			file_activity = excluded.file_activity,
			reactions = excluded.reactions,
			created_at = excluded.created_at,
			graphite = excluded.graphite
	`, row)
	return err
}

// UpsertPR upserts one PR metadata row.
func (s *Store) UpsertPR(ctx context.Context, meta entry.PRMeta) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		return upsertPRMeta(tx, meta)
	})
}

func upsertPRMeta(tx *sqlx.Tx, meta entry.PRMeta) error {
	row := prMetaToRow(meta)
	_, err := tx.NamedExec(`
		INSERT INTO pr_meta (repo, pr, state, title, author, branch, labels, draft, node_id, url)
		VALUES (:repo, :pr, :state, :title, :author, :branch, :labels, :draft, :node_id, :url)
		ON CONFLICT (repo, pr) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			author = excluded.author,
			branch = excluded.branch,
			labels = excluded.labels,
			draft = excluded.draft,
			node_id = excluded.node_id,
			url = excluded.url
	`, row)
	if err != nil {
		return &ferrors.StoreError{Op: "upsert pr", Err: err}
	}
	return nil
}

// UpsertPRWithEntries upserts PR metadata and its child entries in a
// single transaction, so a sync failure partway through never leaves a PR
// row without its entries (spec §5: "no half-populated PR").
func (s *Store) UpsertPRWithEntries(ctx context.Context, meta entry.PRMeta, entries []entry.Entry) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		if err := upsertPRMeta(tx, meta); err != nil {
			return err
		}
		for _, e := range entries {
			if err := upsertEntry(tx, e); err != nil {
				return &ferrors.StoreError{Op: fmt.Sprintf("upsert entry %s/%s", e.Repo, e.ID), Err: err}
			}
		}
		return nil
	})
}

// GetPR returns PR metadata for (repo, pr), or nil if unknown.
func (s *Store) GetPR(ctx context.Context, repo string, pr int) (*entry.PRMeta, error) {
	var row prMetaRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM pr_meta WHERE repo = ? AND pr = ?`, repo, pr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ferrors.StoreError{Op: "get pr", Err: err}
	}
	m := row.toPRMeta()
	return &m, nil
}

// ListPRs returns every known PR for repo.
func (s *Store) ListPRs(ctx context.Context, repo string) ([]entry.PRMeta, error) {
	var rows []prMetaRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM pr_meta WHERE repo = ? ORDER BY pr`, repo); err != nil {
		return nil, &ferrors.StoreError{Op: "list prs", Err: err}
	}
	out := make([]entry.PRMeta, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPRMeta())
	}
	return out, nil
}

// InsertAck appends one ack record.
func (s *Store) InsertAck(ctx context.Context, rec entry.AckRecord) error {
	return s.InsertAcks(ctx, []entry.AckRecord{rec})
}

// InsertAcks appends ack records atomically: either all are committed or
// none are, per spec §4.7's bulk-ack requirement.
func (s *Store) InsertAcks(ctx context.Context, recs []entry.AckRecord) error {
	if len(recs) == 0 {
		return nil
	}
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		for _, r := range recs {
			_, err := tx.NamedExec(`
				INSERT INTO acks (repo, comment_id, pr, acked_at, acked_by, reaction_added)
				VALUES (:repo, :comment_id, :pr, :acked_at, :acked_by, :reaction_added)
			`, ackToRow(r))
			if err != nil {
				return &ferrors.StoreError{Op: "insert ack", Err: err}
			}
		}
		return nil
	})
}

// AckedIDsFor returns the set of comment IDs acknowledged for repo, using
// the newest ack per comment (spec §3: older acks are shadowed).
func (s *Store) AckedIDsFor(ctx context.Context, repo string) (map[string]bool, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT comment_id FROM acks WHERE repo = ? GROUP BY comment_id
	`, repo)
	if err != nil {
		return nil, &ferrors.StoreError{Op: "query acked ids", Err: err}
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &ferrors.StoreError{Op: "scan acked id", Err: err}
		}
		out[id] = true
	}
	return out, rows.Err()
}

// QueryEntries returns entries matching filter, ordered by created_at DESC
// then id ASC, with optional limit/offset applied after ordering (spec
// §4.4). Bot-pattern exclusion and freeze masking are applied in Go after
// the SQL-expressible predicates narrow the candidate set: sqlite has no
// REGEXP function registered.
func (s *Store) QueryEntries(ctx context.Context, filter Filter, limit, offset int) ([]entry.Entry, error) {
	all, err := s.queryEntriesUnpaged(ctx, filter)
	if err != nil {
		return nil, err
	}

	if offset >= len(all) {
		return []entry.Entry{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CountEntries returns the number of entries matching filter (after the
// same bot/freeze post-filtering QueryEntries applies).
func (s *Store) CountEntries(ctx context.Context, filter Filter) (int, error) {
	all, err := s.queryEntriesUnpaged(ctx, filter)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Store) queryEntriesUnpaged(ctx context.Context, filter Filter) ([]entry.Entry, error) {
	clause, args := filter.build()
	q := `SELECT * FROM entries WHERE ` + clause + ` ORDER BY created_at DESC, id ASC`

	var rows []entryRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, &ferrors.StoreError{Op: "query entries", Err: err}
	}

	var botPatterns []*regexp.Regexp
	if filter.ExcludeBots {
		compiled, err := compileBotPatterns(filter.BotPatterns)
		if err != nil {
			return nil, &ferrors.StoreError{Op: "compile bot patterns", Err: err}
		}
		botPatterns = compiled
	}

	var freezeMap map[freezeKey]time.Time
	if !filter.IncludeFrozen {
		var err error
		freezeMap, err = s.freezeMapFor(ctx, filter.Repo)
		if err != nil {
			return nil, err
		}
	}

	out := make([]entry.Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, &ferrors.StoreError{Op: "decode entry", Err: err}
		}

		if filter.ExcludeBots && matchesAnyBotPattern(e.Author, botPatterns) {
			continue
		}

		if freezeMap != nil {
			if frozenAt, ok := freezeMap[freezeKey{e.Repo, e.PR}]; ok && e.CreatedAt.After(frozenAt) {
				continue
			}
		}

		out = append(out, e)
	}
	return out, nil
}

type freezeKey struct {
	repo string
	pr   int
}

func (s *Store) freezeMapFor(ctx context.Context, repo string) (map[freezeKey]time.Time, error) {
	recs, err := s.FrozenPRs(ctx, repo)
	if err != nil {
		return nil, err
	}
	m := make(map[freezeKey]time.Time, len(recs))
	for _, r := range recs {
		m[freezeKey{r.Repo, r.PR}] = r.FrozenAt
	}
	return m, nil
}

// SetSyncMeta upserts the checkpoint for (repo, scope).
func (s *Store) SetSyncMeta(ctx context.Context, repo string, scope entry.Scope, meta entry.SyncMeta) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sync_meta (repo, scope, last_sync, pr_count, cursor)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (repo, scope) DO UPDATE SET
				last_sync = excluded.last_sync,
				pr_count = excluded.pr_count,
				cursor = excluded.cursor
		`, repo, string(scope), meta.LastSync.UTC().Format(time.RFC3339Nano), meta.PRCount, meta.Cursor)
		if err != nil {
			return &ferrors.StoreError{Op: "set sync meta", Err: err}
		}
		return nil
	})
}

// GetSyncMeta returns the checkpoint for (repo, scope), or nil if none
// exists yet.
func (s *Store) GetSyncMeta(ctx context.Context, repo string, scope entry.Scope) (*entry.SyncMeta, error) {
	var row syncMetaRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM sync_meta WHERE repo = ? AND scope = ?`, repo, string(scope))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ferrors.StoreError{Op: "get sync meta", Err: err}
	}
	m := row.toSyncMeta()
	return &m, nil
}

// AllSyncMeta returns every stored checkpoint.
func (s *Store) AllSyncMeta(ctx context.Context) ([]entry.SyncMeta, error) {
	var rows []syncMetaRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM sync_meta ORDER BY repo, scope`); err != nil {
		return nil, &ferrors.StoreError{Op: "list sync meta", Err: err}
	}
	out := make([]entry.SyncMeta, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toSyncMeta())
	}
	return out, nil
}

// SetFreeze creates or updates the freeze marker for (repo, pr).
func (s *Store) SetFreeze(ctx context.Context, repo string, pr int, ts time.Time) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO freeze (repo, pr, frozen_at) VALUES (?, ?, ?)
			ON CONFLICT (repo, pr) DO UPDATE SET frozen_at = excluded.frozen_at
		`, repo, pr, ts.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return &ferrors.StoreError{Op: "set freeze", Err: err}
		}
		return nil
	})
}

// ClearFreeze removes the freeze marker for (repo, pr), if any.
func (s *Store) ClearFreeze(ctx context.Context, repo string, pr int) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`DELETE FROM freeze WHERE repo = ? AND pr = ?`, repo, pr)
		if err != nil {
			return &ferrors.StoreError{Op: "clear freeze", Err: err}
		}
		return nil
	})
}

// FrozenPRs returns every (repo, pr, frozen_at) row, optionally restricted
// to one repo.
func (s *Store) FrozenPRs(ctx context.Context, repo string) ([]entry.FreezeRecord, error) {
	var rows []freezeRow
	var err error
	if repo == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM freeze ORDER BY repo, pr`)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT * FROM freeze WHERE repo = ? ORDER BY pr`, repo)
	}
	if err != nil {
		return nil, &ferrors.StoreError{Op: "list freeze", Err: err}
	}
	out := make([]entry.FreezeRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toFreezeRecord())
	}
	return out, nil
}

// FreezeFor returns the freeze marker for one (repo, pr), or nil.
func (s *Store) FreezeFor(ctx context.Context, repo string, pr int) (*time.Time, error) {
	var row freezeRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM freeze WHERE repo = ? AND pr = ?`, repo, pr)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &ferrors.StoreError{Op: "get freeze", Err: err}
	}
	rec := row.toFreezeRecord()
	return &rec.FrozenAt, nil
}

// ClearRepo removes entries, PR metadata, acks, sync meta, and freeze rows
// for repo (the user-invoked "clear" operation, spec §3).
func (s *Store) ClearRepo(ctx context.Context, repo string) error {
	return s.withWriteTx(ctx, func(tx *sqlx.Tx) error {
		tables := []string{"entries", "pr_meta", "acks", "sync_meta", "freeze"}
		for _, t := range tables {
			if _, err := tx.Exec(`DELETE FROM `+t+` WHERE repo = ?`, repo); err != nil {
				return &ferrors.StoreError{Op: "clear repo " + t, Err: err}
			}
		}
		return nil
	})
}

// QueryCommentEntries returns every type=comment entry for repo, used by
// the ID Resolution Layer (internal/shortid) to rebuild its short-ID
// cache on a miss (spec §4.8).
func (s *Store) QueryCommentEntries(ctx context.Context, repo string) ([]entry.Entry, error) {
	return s.queryEntriesUnpaged(ctx, Filter{
		Repo:          repo,
		Type:          []entry.Type{entry.TypeComment},
		IncludeFrozen: true,
	})
}
