// Package logging wraps log/slog with the attribute shape Firewatch's
// subsystems share (repo, pr, scope). The teacher carries no logging
// library; the closest sibling in the retrieval pack doing the same job
// (a GitHub PR tool) reaches for the standard library's slog, so Firewatch
// follows that rather than inventing a bespoke logger.
package logging

import (
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger writing to stderr, the shape every
// surface (CLI, MCP) shares so structured logs can be piped independent of
// JSONL result output on stdout.
func New(level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// WithRepo returns a logger with a "repo" attribute attached.
func WithRepo(l *slog.Logger, repo string) *slog.Logger {
	return l.With("repo", repo)
}

// WithScope returns a logger with "repo" and "scope" attributes attached.
func WithScope(l *slog.Logger, repo, scope string) *slog.Logger {
	return l.With("repo", repo, "scope", scope)
}

// WithPR returns a logger with "repo" and "pr" attributes attached.
func WithPR(l *slog.Logger, repo string, pr int) *slog.Logger {
	return l.With("repo", repo, "pr", pr)
}
