// Command firewatch is Firewatch's CLI surface: thin urfave/cli/v2 flag
// plumbing over the core packages (store, ghclient, sync, worklist,
// actionable, feedback, shortid). Rendering is out of scope here beyond
// the two supported output modes, text and JSONL (spec §6); every command
// delegates to a core package for its actual behavior.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/outfitter-dev/firewatch-sub001/internal/config"
	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
	"github.com/outfitter-dev/firewatch-sub001/internal/ghclient"
	"github.com/outfitter-dev/firewatch-sub001/internal/git"
	"github.com/outfitter-dev/firewatch-sub001/internal/logging"
	"github.com/outfitter-dev/firewatch-sub001/internal/shortid"
	"github.com/outfitter-dev/firewatch-sub001/internal/store"
	"github.com/outfitter-dev/firewatch-sub001/internal/sync"
	"github.com/outfitter-dev/firewatch-sub001/internal/syncplugin"
)

var (
	version = "dev"
	commit  = "none"
)

// app bundles the wired core dependencies one CLI invocation shares.
// Built once in Before, torn down in After.
type app struct {
	cfg        *config.Config
	st         *store.Store
	client     *ghclient.Client
	engine     *sync.Engine
	shortCache *shortid.Cache
	repo       string
	format     string
}

func main() {
	var a app

	cliApp := &cli.App{
		Name:    "firewatch",
		Usage:   "mirror and query GitHub PR activity from a local store",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Usage: "owner/name (defaults to the current directory's git remote)"},
			&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text|json|jsonl"},
			&cli.StringFlag{Name: "config", Usage: "path to config.toml (defaults to the platform config dir)"},
			&cli.StringFlag{Name: "db", Usage: "path to the sqlite database (defaults to the platform data dir)"},
		},
		Before: func(c *cli.Context) error {
			built, err := buildApp(c)
			if err != nil {
				return err
			}
			a = *built
			return nil
		},
		After: func(c *cli.Context) error {
			if a.st != nil {
				return a.st.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			syncCommand(&a),
			listCommand(&a),
			worklistCommand(&a),
			actionableCommand(&a),
			replyCommand(&a),
			resolveCommand(&a),
			ackCommand(&a),
			bulkAckCommand(&a),
			closeCommand(&a),
			freezeCommand(&a),
			unfreezeCommand(&a),
			clearCommand(&a),
			configCommand(&a),
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// buildApp loads config, opens the store, and wires the GitHub client and
// sync engine, following the teacher's main()'s flat bootstrap shape
// generalized into urfave/cli's Before hook.
func buildApp(c *cli.Context) (*app, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFrom(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	repo := c.String("repo")
	if repo == "" && len(cfg.Repos) > 0 {
		repo = cfg.Repos[0]
	}
	if repo == "" {
		detected, derr := git.DetectRepo("")
		if derr != nil {
			return nil, &ferrors.ConfigError{Msg: "no --repo given and no git remote detected", Err: derr}
		}
		repo = detected
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = config.DBPath()
	}
	if err := os.MkdirAll(parentDir(dbPath), 0o755); err != nil {
		return nil, &ferrors.StoreError{Op: "mkdir", Err: err}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	token, err := cfg.ResolveToken()
	if err != nil {
		st.Close()
		return nil, err
	}
	client := ghclient.New(token, "")

	var plugins syncplugin.Chain
	if cfg.GraphiteEnabled {
		plugins = append(plugins, syncplugin.NewGraphite())
	}

	log := logging.New(slog.LevelWarn)
	engine := sync.New(st, client, plugins, log)

	return &app{
		cfg:        cfg,
		st:         st,
		client:     client,
		engine:     engine,
		shortCache: shortid.NewCache(),
		repo:       repo,
		format:     c.String("format"),
	}, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// exitCodeFor maps an error onto spec §7's exit code contract: 1 for an
// outright operation failure, 2 for a partialResultError carrying partial
// success. Plain errors (config, auth, not-found, ...) are always 1.
func exitCodeFor(err error) int {
	var pr *partialResultError
	if ok := asPartialResult(err, &pr); ok {
		return 2
	}
	return 1
}

// partialResultError wraps a batch command's aggregate outcome when some
// but not all targets succeeded (spec §7).
type partialResultError struct {
	msg string
}

func (e *partialResultError) Error() string { return e.msg }

func asPartialResult(err error, target **partialResultError) bool {
	pr, ok := err.(*partialResultError)
	if ok {
		*target = pr
	}
	return ok
}

func partialFailure(format string, args ...interface{}) error {
	return &partialResultError{msg: fmt.Sprintf(format, args...)}
}
