// Package curationlog persists export revisions and curated file statuses.
package curationlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"github.com/xeipuuv/gojsonschema"

	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/models"
)

const schema = `{
  "type": "object",
  "required": ["sourceRevisionAtLastExport", "targetRevisionAtLastExport"],
  "properties": {
    "sourceRevisionAtLastExport": {"type": "string", "minLength": 1},
    "targetRevisionAtLastExport": {"type": "string", "minLength": 1},
    "curatedFiles": {
      "type": "object",
      "additionalProperties": {"type": "string"}
    }
  }
}`

// ValidationError lists the schema violations of a curation log.
type ValidationError struct {
	Path     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid curation log %s: %s", e.Path, strings.Join(e.Problems, "; "))
}

// Store is the in-memory curation log. All mutations go through it and reach disk on Save.
type Store struct {
	mu      sync.Mutex
	fs      afero.Fs
	path    string
	doc     models.CurationLog
	removed map[string]bool
}

// Load reads and validates the curation log at path.
func Load(fsys afero.Fs, path string) (*Store, error) {
	doc, _, err := read(fsys, path)
	if err != nil {
		return nil, err
	}
	if doc.CuratedFiles == nil {
		doc.CuratedFiles = map[string]string{}
	}
	return &Store{fs: fsys, path: path, doc: doc, removed: map[string]bool{}}, nil
}

func read(fsys afero.Fs, path string) (models.CurationLog, map[string]any, error) {
	var doc models.CurationLog
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return doc, nil, fmt.Errorf("read curation log: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return doc, nil, fmt.Errorf("parse curation log %s: %w", path, err)
	}
	if !result.Valid() {
		verr := &ValidationError{Path: path}
		for _, re := range result.Errors() {
			verr.Problems = append(verr.Problems, re.String())
		}
		return doc, nil, verr
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, nil, fmt.Errorf("decode curation log %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return doc, nil, fmt.Errorf("decode curation log %s: %w", path, err)
	}
	return doc, raw, nil
}

// Path returns the file the store reads and writes.
func (s *Store) Path() string {
	return s.path
}

// Revisions returns the source and target revisions of the last export.
func (s *Store) Revisions() (source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.SourceRevisionAtLastExport, s.doc.TargetRevisionAtLastExport
}

// SetRevisions records the revisions reached by this export.
func (s *Store) SetRevisions(source, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.SourceRevisionAtLastExport = source
	s.doc.TargetRevisionAtLastExport = target
}

// status returns the curated status of a base path.
func (s *Store) status(base string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.doc.CuratedFiles[base]
	return status, ok
}

// Blocked returns the set of base paths blocked from future exports.
func (s *Store) Blocked() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for path, status := range s.doc.CuratedFiles {
		if status == models.BlockedStatus {
			out[path] = true
		}
	}
	return out
}

// Files returns the curated base paths in sorted order.
func (s *Store) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.doc.CuratedFiles))
}

// Block marks base as never to be exported again.
func (s *Store) Block(base string) {
	s.set(base, models.BlockedStatus)
}

// Unblock removes base from the blocked set. Other curated statuses are kept.
func (s *Store) Unblock(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.CuratedFiles[base] == models.BlockedStatus {
		s.drop(base)
	}
}

// Drop forgets base entirely.
func (s *Store) Drop(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.doc.CuratedFiles[base]; ok {
		s.drop(base)
	}
}

// Rename moves the entry of from to to, if any.
func (s *Store) Rename(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.doc.CuratedFiles[from]
	if !ok {
		return
	}
	s.drop(from)
	s.doc.CuratedFiles[to] = status
	delete(s.removed, to)
}

func (s *Store) set(base, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.CuratedFiles[base] = status
	delete(s.removed, base)
}

func (s *Store) drop(base string) {
	delete(s.doc.CuratedFiles, base)
	s.removed[base] = true
}

// Save merges the in-memory document into the file on disk.
// Keys unknown to this store and entries added on disk since Load are preserved.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := map[string]any{}
	curated := map[string]string{}
	onDisk, diskRaw, err := read(s.fs, s.path)
	switch {
	case err == nil:
		raw = diskRaw
		maps.Copy(curated, onDisk.CuratedFiles)
	case errors.Is(err, fs.ErrNotExist):
	default:
		log.Warnf("curation log %s unreadable, rewriting it: %v", s.path, err)
	}

	for path := range s.removed {
		delete(curated, path)
	}
	maps.Copy(curated, s.doc.CuratedFiles)

	raw["sourceRevisionAtLastExport"] = s.doc.SourceRevisionAtLastExport
	raw["targetRevisionAtLastExport"] = s.doc.TargetRevisionAtLastExport
	raw["curatedFiles"] = curated

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode curation log: %w", err)
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create curation log directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, append(data, '\n'), 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("write curation log: %w", err)
	}
	log.Debugf("saved curation log %s with %d curated files", s.path, len(curated))
	return nil
}
