package syncplugin

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// Graphite is a best-effort stack-provider plugin: it shells out to the
// local Graphite CLI to learn the stack a PR's branch belongs to. The
// Graphite CLI's own stack-tracking logic is out of scope here; this
// plugin only defines the enrichment seam and reads whatever the CLI
// reports, failing soft (leaving the entry unenriched) if Graphite isn't
// installed or the branch isn't part of a tracked stack.
type Graphite struct {
	// LookupPath overrides exec.LookPath for tests.
	LookupPath func(string) (string, error)
	// Run overrides exec.Command for tests.
	Run func(ctx context.Context, branch string) ([]byte, error)
}

func NewGraphite() *Graphite {
	return &Graphite{
		LookupPath: exec.LookPath,
		Run:        runGraphiteCLI,
	}
}

func (g *Graphite) Name() string { return "graphite" }

// Enrich attaches GraphiteInfo to review-relevant entries for a PR whose
// branch Graphite tracks. Entries with no PRBranch, or for which Graphite
// reports nothing, are left untouched: this is enrichment, not a
// required field.
func (g *Graphite) Enrich(ctx context.Context, e *entry.Entry) error {
	if e.PRBranch == "" {
		return nil
	}
	if _, err := g.LookupPath("gt"); err != nil {
		return nil
	}

	out, err := g.Run(ctx, e.PRBranch)
	if err != nil {
		return nil
	}

	var stack graphiteStackJSON
	if err := json.Unmarshal(out, &stack); err != nil {
		return nil
	}
	if stack.StackID == "" {
		return nil
	}

	e.Graphite = &entry.GraphiteInfo{
		StackID:       stack.StackID,
		StackPosition: stack.Position,
		StackSize:     stack.Size,
	}
	return nil
}

type graphiteStackJSON struct {
	StackID  string `json:"stack_id"`
	Position int    `json:"position"`
	Size     int    `json:"size"`
}

// runGraphiteCLI shells out to `gt state <branch> --json`, the same
// command-runner shape the teacher uses for the gh CLI.
func runGraphiteCLI(ctx context.Context, branch string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gt", "state", strings.TrimSpace(branch), "--json")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return stdout.Bytes(), nil
}
