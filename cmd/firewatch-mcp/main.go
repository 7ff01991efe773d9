// Command firewatch-mcp exposes Firewatch's core operations as MCP tools
// over stdio, the same modelcontextprotocol/go-sdk server shape the
// retrieval pack's gh-aw MCP surface uses (mcp.NewServer + mcp.AddTool per
// tool, mcp.StdioTransport to run), so an agent can sync/query/act on PR
// activity the same way it would drive gh-aw's workflow tools.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

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

var version = "dev"

// server bundles the wired core dependencies every tool handler closes
// over. One instance is built at process start and shared across calls;
// the Store already serialises its own writes (spec §5).
type server struct {
	cfg        *config.Config
	st         *store.Store
	client     *ghclient.Client
	engine     *sync.Engine
	shortCache *shortid.Cache
}

func main() {
	srv, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "firewatch-mcp: %v\n", err)
		os.Exit(1)
	}
	defer srv.st.Close()

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "firewatch",
		Version: version,
	}, &mcp.ServerOptions{
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	srv.registerTools(mcpServer)

	if err := mcpServer.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		fmt.Fprintf(os.Stderr, "firewatch-mcp: %v\n", err)
		os.Exit(1)
	}
}

func bootstrap() (*server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	dbPath := config.DBPath()
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

	return &server{
		cfg:        cfg,
		st:         st,
		client:     client,
		engine:     engine,
		shortCache: shortid.NewCache(),
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

// resolveRepo returns repo if set, else the config's first configured
// repo, else the git remote of the current directory, matching the CLI
// surface's same precedence (spec §6).
func (s *server) resolveRepo(repo string) (string, error) {
	if repo != "" {
		return repo, nil
	}
	if len(s.cfg.Repos) > 0 {
		return s.cfg.Repos[0], nil
	}
	return git.DetectRepo("")
}
