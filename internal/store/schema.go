package store

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id              TEXT NOT NULL,
	repo            TEXT NOT NULL,
	pr              INTEGER NOT NULL,
	pr_state        TEXT NOT NULL,
	pr_author       TEXT NOT NULL,
	pr_title        TEXT NOT NULL,
	pr_branch       TEXT NOT NULL,
	pr_labels       TEXT NOT NULL DEFAULT '[]',
	type            TEXT NOT NULL,
	subtype         TEXT NOT NULL DEFAULT '',
	author          TEXT NOT NULL,
	author_login    TEXT NOT NULL DEFAULT '',
	body            TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	file            TEXT NOT NULL DEFAULT '',
	line            INTEGER NOT NULL DEFAULT 0,
	database_id     INTEGER NOT NULL DEFAULT 0,
	thread_id       TEXT NOT NULL DEFAULT '',
	thread_resolved INTEGER NOT NULL DEFAULT 0,
	file_activity   TEXT NOT NULL DEFAULT '',
	reactions       TEXT NOT NULL DEFAULT '',
	created_at      TEXT NOT NULL,
	captured_at     TEXT NOT NULL,
	graphite        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (repo, id)
);

CREATE INDEX IF NOT EXISTS idx_entries_repo_pr ON entries(repo, pr);
CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);

CREATE TABLE IF NOT EXISTS pr_meta (
	repo    TEXT NOT NULL,
	pr      INTEGER NOT NULL,
	state   TEXT NOT NULL,
	title   TEXT NOT NULL,
	author  TEXT NOT NULL,
	branch  TEXT NOT NULL,
	labels  TEXT NOT NULL DEFAULT '[]',
	draft   INTEGER NOT NULL DEFAULT 0,
	node_id TEXT NOT NULL DEFAULT '',
	url     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (repo, pr)
);

CREATE TABLE IF NOT EXISTS sync_meta (
	repo      TEXT NOT NULL,
	scope     TEXT NOT NULL,
	last_sync TEXT NOT NULL,
	pr_count  INTEGER NOT NULL DEFAULT 0,
	cursor    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (repo, scope)
);

CREATE TABLE IF NOT EXISTS acks (
	seq            INTEGER PRIMARY KEY AUTOINCREMENT,
	repo           TEXT NOT NULL,
	comment_id     TEXT NOT NULL,
	pr             INTEGER NOT NULL,
	acked_at       TEXT NOT NULL,
	acked_by       TEXT NOT NULL DEFAULT '',
	reaction_added INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_acks_repo_comment ON acks(repo, comment_id);

CREATE TABLE IF NOT EXISTS freeze (
	repo      TEXT NOT NULL,
	pr        INTEGER NOT NULL,
	frozen_at TEXT NOT NULL,
	PRIMARY KEY (repo, pr)
);
`
