// Package diffparse turns git name-status output into normalized diff maps.
package diffparse

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar"

	"github.com/chmouel/t262export/internal/curation"
	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/models"
)

// Statuses rejected in each diff list.
var (
	SourceErrorStatuses = []models.Status{models.StatusUnmerged, models.StatusUnknown}
	TargetErrorStatuses = []models.Status{
		models.StatusUnmerged,
		models.StatusUnknown,
		models.StatusAdded,
		models.StatusFileTypeChange,
		models.StatusRenamed,
	}
)

// HumanEditChecker decides whether a file was curated by a human since a revision.
type HumanEditChecker interface {
	WasModifiedByHuman(ctx context.Context, q curation.Query) (bool, error)
}

var _ HumanEditChecker = (*curation.HistoryChecker)(nil)

// EscapeOptions lets added or renamed target files through the status check
// when only the automation touched them.
type EscapeOptions struct {
	SourceDirectory    string
	TargetDirectory    string
	Since              string // target revision at last export
	IgnoredMaintainers []string
}

// Options configures one Parse call.
type Options struct {
	Includes      []string // absolute doublestar globs
	Excludes      []string
	ErrorStatuses []models.Status
	RootDir       string // directory the diff paths are relative to
	Escape        *EscapeOptions
}

// Parser builds DiffMaps from raw diff output.
type Parser struct {
	checker HumanEditChecker
}

// NewParser returns a Parser. checker may be nil when no Options.Escape is used.
func NewParser(checker HumanEditChecker) *Parser {
	return &Parser{checker: checker}
}

// SplitRecord parses a single `status\tpathA[\tpathB]` line.
func SplitRecord(line string) (models.DiffRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
		return models.DiffRecord{}, &MalformedRecordError{Line: line}
	}
	record := models.DiffRecord{Status: fields[0], PathA: fields[1]}
	if len(fields) > 2 {
		record.PathB = fields[2]
	}
	return record, nil
}

// Parse normalizes raw diff output. Records are filtered by the include and exclude globs,
// validated against the error statuses and stored keyed by their first path.
func (p *Parser) Parse(ctx context.Context, raw string, opts Options) (*models.DiffMap, error) {
	out := models.NewDiffMap()

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := SplitRecord(line)
		if err != nil {
			return nil, err
		}
		record.PathA = filepath.Join(opts.RootDir, record.PathA)
		if record.PathB != "" {
			record.PathB = filepath.Join(opts.RootDir, record.PathB)
		}

		include, err := p.include(ctx, record, opts)
		if err != nil {
			return nil, err
		}
		log.Debugf("include %t: %s %s %s", include, record.Status, record.PathA, record.PathB)
		if !include {
			continue
		}

		entry := models.DiffEntry{Status: record.Status}
		if models.StatusOf(record.Status) == models.StatusRenamed {
			entry.RenamedTo = record.PathB
		}
		out.Set(record.PathA, entry)
	}

	return out, nil
}

func (p *Parser) include(ctx context.Context, record models.DiffRecord, opts Options) (bool, error) {
	paths := []string{record.PathA}
	if record.PathB != "" {
		paths = append(paths, record.PathB)
	}

	matched := false
	for _, path := range paths {
		ok, err := Matches(path, opts.Includes, opts.Excludes)
		if err != nil {
			return false, err
		}
		if ok {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	status := models.StatusOf(record.Status)
	if !slices.Contains(opts.ErrorStatuses, status) {
		return true, nil
	}

	invalid := &InvalidStatusError{Status: record.Status, PathA: record.PathA, PathB: record.PathB}
	esc := opts.Escape
	if esc == nil || p.checker == nil {
		return false, invalid
	}
	if status != models.StatusAdded && status != models.StatusRenamed {
		return false, invalid
	}
	if isUnder(record.PathA, esc.SourceDirectory) {
		return false, invalid
	}

	human, err := p.checker.WasModifiedByHuman(ctx, curation.Query{
		Since:              esc.Since,
		Directory:          esc.TargetDirectory,
		Filename:           strings.TrimPrefix(record.PathA, esc.TargetDirectory),
		IgnoredMaintainers: esc.IgnoredMaintainers,
	})
	if err != nil {
		return false, fmt.Errorf("check history of %s: %w", record.PathA, err)
	}
	if human {
		return false, invalid
	}
	return true, nil
}

// Matches reports whether path matches at least one include glob and none of the excludes.
// An exclude also covers everything below it when it names a directory.
func Matches(path string, includes, excludes []string) (bool, error) {
	included := false
	for _, pattern := range includes {
		ok, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		if ok {
			included = true
			break
		}
	}
	if !included {
		return false, nil
	}

	for _, pattern := range excludes {
		for _, candidate := range []string{pattern, strings.TrimSuffix(pattern, "/") + "/**"} {
			ok, err := doublestar.Match(candidate, path)
			if err != nil {
				return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
			}
			if ok {
				return false, nil
			}
		}
	}
	return true, nil
}

// DirectoryPattern returns the glob matching every file below dir.
func DirectoryPattern(dir string) string {
	return strings.TrimSuffix(dir, "/") + "/**"
}

func isUnder(path, dir string) bool {
	if dir == "" {
		return false
	}
	return path == dir || strings.HasPrefix(path, strings.TrimSuffix(dir, "/")+"/")
}
