// Package shortid is Firewatch's ID Resolution Layer (spec §4.8): a
// deterministic short-ID scheme over node IDs, plus a process-lifetime
// cache that lets every interactive surface accept PR numbers, 5-hex
// short IDs, or full node IDs interchangeably.
package shortid

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/outfitter-dev/firewatch-sub001/internal/entry"
	"github.com/outfitter-dev/firewatch-sub001/internal/ferrors"
)

// shortIDLen is the number of hex characters a short ID carries (spec
// §4.8 / §8 property 2: 5 hex chars, ~1/2^20 collision probability).
const shortIDLen = 5

// Kind classifies a resolved input.
type Kind int

const (
	KindUnknown Kind = iota
	KindPR
	KindShortID
	KindFullID
)

var (
	shortIDPattern = regexp.MustCompile(`^@?[0-9a-f]{5}$`)
	nodeIDPattern  = regexp.MustCompile(`^[A-Z_]+[A-Za-z0-9_-]{10,}$`)
	allDigits      = regexp.MustCompile(`^[0-9]+$`)
)

// Classify reports which ID shape input matches, per spec §4.8.
func Classify(input string) Kind {
	switch {
	case allDigits.MatchString(input):
		return KindPR
	case shortIDPattern.MatchString(input):
		return KindShortID
	case nodeIDPattern.MatchString(input):
		return KindFullID
	default:
		return KindUnknown
	}
}

// Short computes the 5-hex short ID for (fullID, repo): the first 5 hex
// characters of sha256("{repo}:{fullID}"). Deterministic (spec §8
// property 1): re-invocation with the same inputs always yields the same
// output.
func Short(fullID, repo string) string {
	sum := sha256.Sum256([]byte(repo + ":" + fullID))
	return hex.EncodeToString(sum[:])[:shortIDLen]
}

// Display prepends the "@" display form to a bare short ID.
func Display(shortID string) string {
	return "@" + strings.TrimPrefix(shortID, "@")
}

// EntryLookup is the subset of store access the cache needs to rebuild
// itself from the comment entries of a repo.
type EntryLookup interface {
	QueryCommentEntries(ctx context.Context, repo string) ([]entry.Entry, error)
}

// cacheEntry is one resolved short-ID mapping. Others lists the remaining
// full IDs that collided on the same short ID, for IdAmbiguousError
// reporting (spec §4.8: resolves to the lexicographically smallest full
// ID, the collision recorded as a warning).
type cacheEntry struct {
	fullID string
	repo   string
	pr     int
	entry  entry.Entry
	others []string
}

// Cache is the process-lifetime, mutex-guarded short-ID cache (spec §4.8,
// §5 "process-local, guarded by a mutex, rebuilt lazily").
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]cacheEntry // shortID -> resolved entry
	built   map[string]bool        // repo -> cache built for this repo
}

type cacheKey struct {
	repo    string
	shortID string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[cacheKey]cacheEntry),
		built:   make(map[string]bool),
	}
}

// ensureBuilt rebuilds the cache for repo from store, if not already
// built. Ambiguous short IDs resolve to the lexicographically smallest
// full ID; the rest are recorded in .others.
func (c *Cache) ensureBuilt(ctx context.Context, lookup EntryLookup, repo string) error {
	if c.built[repo] {
		return nil
	}

	entries, err := lookup.QueryCommentEntries(ctx, repo)
	if err != nil {
		return err
	}

	byShort := make(map[string][]entry.Entry)
	for _, e := range entries {
		sid := Short(e.ID, repo)
		byShort[sid] = append(byShort[sid], e)
	}

	for sid, es := range byShort {
		sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
		others := make([]string, 0, len(es)-1)
		for _, e := range es[1:] {
			others = append(others, e.ID)
		}
		c.entries[cacheKey{repo, sid}] = cacheEntry{
			fullID: es[0].ID,
			repo:   repo,
			pr:     es[0].PR,
			entry:  es[0],
			others: others,
		}
	}

	c.built[repo] = true
	return nil
}

// Put registers one known (fullID, repo, pr) mapping directly, e.g. after
// a sync pass or a write that just created a new comment. This lets
// callers keep the cache warm without a full rebuild.
func (c *Cache) Put(fullID, repo string, pr int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sid := Short(fullID, repo)
	key := cacheKey{repo, sid}
	existing, ok := c.entries[key]
	if !ok {
		c.entries[key] = cacheEntry{fullID: fullID, repo: repo, pr: pr}
		return
	}
	c.entries[key] = mergeCollision(existing, fullID, pr)
}

// mergeCollision folds a newly observed (fullID, pr) into an existing
// cache slot, keeping the lexicographically smallest full ID canonical
// per spec §4.8 and recording the rest as collision candidates.
func mergeCollision(existing cacheEntry, fullID string, pr int) cacheEntry {
	if existing.fullID == fullID {
		return existing
	}
	if fullID < existing.fullID {
		existing.others = append(existing.others, existing.fullID)
		existing.fullID = fullID
		existing.pr = pr
	} else {
		existing.others = append(existing.others, fullID)
	}
	return existing
}

// Resolved is one resolve_batch result element (spec §4.8).
type Resolved struct {
	Kind    Kind
	Input   string
	PR      int
	ID      string // full node ID, for comment results
	ShortID string
	Entry   *entry.Entry
	Warning error // set to an IdAmbiguousError on collision
	Err     error
}

// ResolveBatch resolves each id in ids against repo, consulting the cache
// first and rebuilding it from lookup on a miss (spec §4.8, §8 scenario
// S6). A single rebuild is shared across the whole batch.
func ResolveBatch(ctx context.Context, c *Cache, lookup EntryLookup, ids []string, repo string) []Resolved {
	out := make([]Resolved, 0, len(ids))
	needsRebuild := false

	c.mu.Lock()
	for _, id := range ids {
		kind := Classify(id)
		if kind == KindShortID {
			bare := strings.TrimPrefix(id, "@")
			if _, ok := c.entries[cacheKey{repo, bare}]; !ok {
				needsRebuild = true
			}
		}
	}
	c.mu.Unlock()

	if needsRebuild {
		c.mu.Lock()
		c.built[repo] = false // a miss forces a fresh rebuild, even if built before
		err := c.ensureBuilt(ctx, lookup, repo)
		c.mu.Unlock()
		if err != nil {
			for _, id := range ids {
				out = append(out, Resolved{Kind: KindUnknown, Input: id, Err: err})
			}
			return out
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		out = append(out, c.resolveOneLocked(id, repo))
	}
	return out
}

func (c *Cache) resolveOneLocked(id, repo string) Resolved {
	kind := Classify(id)
	switch kind {
	case KindPR:
		n, err := strconv.Atoi(id)
		if err != nil {
			return Resolved{Kind: KindUnknown, Input: id, Err: &ferrors.IdFormatError{Input: id}}
		}
		return Resolved{Kind: KindPR, Input: id, PR: n}

	case KindShortID:
		bare := strings.TrimPrefix(id, "@")
		ce, ok := c.entries[cacheKey{repo, bare}]
		if !ok {
			return Resolved{Kind: KindUnknown, Input: id, Err: &ferrors.IdNotFoundError{Input: id}}
		}
		entryCopy := ce.entry
		r := Resolved{Kind: KindShortID, Input: id, ID: ce.fullID, ShortID: bare, PR: ce.pr, Entry: &entryCopy}
		if len(ce.others) > 0 {
			r.Warning = &ferrors.IdAmbiguousError{ShortID: bare, Resolved: ce.fullID, Others: ce.others}
		}
		return r

	case KindFullID:
		return Resolved{Kind: KindFullID, Input: id, ID: id, ShortID: Short(id, repo)}

	default:
		return Resolved{Kind: KindUnknown, Input: id, Err: &ferrors.IdFormatError{Input: id}}
	}
}
