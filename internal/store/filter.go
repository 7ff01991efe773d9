package store

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
)

// Filter composes by conjunction, matching spec §4.1/§4.4 exactly. Zero
// values mean "no restriction" for that field.
type Filter struct {
	Repo           string // exact match
	RepoPrefix     string // prefix match, used instead of Repo when set
	PR             []int
	Type           []entry.Type
	Author         []string // OR within
	ExcludeAuthors []string
	ExcludeBots    bool
	BotPatterns    []string
	Label          string // substring, case-insensitive, against pr_labels
	States         []entry.PRState
	Since          *time.Time
	Before         *time.Time
	ID             string
	ExcludeStale   bool
	Orphaned       bool
	IncludeFrozen  bool // internal bulk-clear path: bypass freeze masking
}

func (f *Filter) build() (string, []interface{}) {
	var clauses []string
	var args []interface{}

	clauses = append(clauses, "1=1")

	if f.RepoPrefix != "" {
		clauses = append(clauses, "repo LIKE ?")
		args = append(args, f.RepoPrefix+"%")
	} else if f.Repo != "" {
		clauses = append(clauses, "repo = ?")
		args = append(args, f.Repo)
	}

	if len(f.PR) > 0 {
		clauses = append(clauses, inClause("pr", len(f.PR)))
		for _, pr := range f.PR {
			args = append(args, pr)
		}
	}

	if len(f.Type) > 0 {
		clauses = append(clauses, inClause("type", len(f.Type)))
		for _, t := range f.Type {
			args = append(args, string(t))
		}
	}

	if len(f.Author) > 0 {
		clauses = append(clauses, inClauseCI("author", len(f.Author)))
		for _, a := range f.Author {
			args = append(args, strings.ToLower(a))
		}
	}

	if len(f.ExcludeAuthors) > 0 {
		clauses = append(clauses, "NOT "+inClauseCI("author", len(f.ExcludeAuthors)))
		for _, a := range f.ExcludeAuthors {
			args = append(args, strings.ToLower(a))
		}
	}

	if f.Label != "" {
		clauses = append(clauses, "LOWER(pr_labels) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.Label)+"%")
	}

	if len(f.States) > 0 {
		clauses = append(clauses, inClause("pr_state", len(f.States)))
		for _, st := range f.States {
			args = append(args, string(st))
		}
	}

	if f.ID != "" {
		clauses = append(clauses, "id = ?")
		args = append(args, f.ID)
	}

	if f.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}
	if f.Before != nil {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.Before.UTC().Format(time.RFC3339Nano))
	}

	if f.ExcludeStale {
		if f.Orphaned {
			clauses = append(clauses,
				"pr_state IN ('closed','merged')",
				`EXISTS (
					SELECT 1 FROM entries t2
					WHERE t2.repo = entries.repo AND t2.pr = entries.pr
					AND t2.type = 'comment' AND t2.subtype = 'review_comment'
					AND t2.thread_resolved != 1
				)`,
			)
		} else {
			clauses = append(clauses, "pr_state NOT IN ('closed','merged')")
		}
	}

	return strings.Join(clauses, " AND "), args
}

func inClause(col string, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ","))
}

func inClauseCI(col string, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return fmt.Sprintf("LOWER(%s) IN (%s)", col, strings.Join(ph, ","))
}

// compileBotPatterns compiles filter.BotPatterns for post-query filtering;
// sqlite (via modernc.org/sqlite) has no REGEXP function registered, so bot
// exclusion is applied in Go after the SQL-expressible predicates narrow
// the candidate set.
func compileBotPatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid bot pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAnyBotPattern(author string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(author) {
			return true
		}
	}
	return false
}
