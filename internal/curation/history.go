// Package curation answers whether a human curator touched a file since the last export.
package curation

import (
	"context"
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chmouel/t262export/internal/git"
	log "github.com/chmouel/t262export/internal/log"
)

const defaultCacheSize = 4096

// AuthorLister lists the commit authors of a file since a revision.
type AuthorLister interface {
	AuthorsSince(ctx context.Context, dir, since, filename string) ([]string, error)
}

var _ AuthorLister = (*git.Service)(nil)

// Query identifies one history lookup.
type Query struct {
	Since              string // revision the history starts after
	Directory          string // directory git runs in
	Filename           string // path relative to Directory, usually with a leading slash
	IgnoredMaintainers []string
}

func (q Query) key() string {
	ignored := slices.Clone(q.IgnoredMaintainers)
	slices.Sort(ignored)
	return strings.Join([]string{q.Since, q.Directory, q.Filename, strings.Join(ignored, "\x1f")}, "\x00")
}

// HistoryChecker memoizes author lookups across the parser and the classifier.
type HistoryChecker struct {
	authors AuthorLister
	cache   *lru.Cache[string, bool]
}

// NewHistoryChecker returns a checker backed by authors.
func NewHistoryChecker(authors AuthorLister) (*HistoryChecker, error) {
	cache, err := lru.New[string, bool](defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create history cache: %w", err)
	}
	return &HistoryChecker{authors: authors, cache: cache}, nil
}

// WasModifiedByHuman reports whether any author other than the ignored maintainers committed to the file.
// Errors from the author lookup are returned unchanged and are not cached.
func (c *HistoryChecker) WasModifiedByHuman(ctx context.Context, q Query) (bool, error) {
	key := q.key()
	if human, ok := c.cache.Get(key); ok {
		return human, nil
	}

	names, err := c.authors.AuthorsSince(ctx, q.Directory, q.Since, q.Filename)
	if err != nil {
		return false, err
	}

	human := len(HumanAuthors(names, q.IgnoredMaintainers)) > 0
	log.Debugf("history %s since %s: human=%t", q.Filename, q.Since, human)
	c.cache.Add(key, human)
	return human, nil
}

// HumanAuthors returns the distinct non-empty names that are not ignored, in first-seen order.
func HumanAuthors(names, ignored []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || slices.Contains(ignored, name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
