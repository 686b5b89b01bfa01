package models

import "strconv"

// DiffRecord is one line of a git name-status diff.
type DiffRecord struct {
	Status string // raw code, e.g. "M" or "R086"
	PathA  string
	PathB  string // only set for renames and copies
}

// DiffEntry is the normalized value stored for a path in a DiffMap.
type DiffEntry struct {
	Status    string // raw code, similarity included for renames
	RenamedTo string // new path when Status is a rename
}

// Code returns the single-letter status of the entry.
func (e DiffEntry) Code() Status {
	return StatusOf(e.Status)
}

// IsRename reports whether the entry describes a rename.
func (e DiffEntry) IsRename() bool {
	return e.Code() == StatusRenamed
}

// Similarity returns the rename similarity score, or 100 when the status carries none.
func (e DiffEntry) Similarity() int {
	return SimilarityOf(e.Status)
}

// String renders the composite form "<status>,<newPath>" for renames and the bare status otherwise.
func (e DiffEntry) String() string {
	if e.IsRename() && e.RenamedTo != "" {
		return e.Status + "," + e.RenamedTo
	}
	return e.Status
}

// SimilarityOf parses the numeric score after a rename or copy code.
func SimilarityOf(raw string) int {
	if len(raw) < 2 {
		return 100
	}
	score, err := strconv.Atoi(raw[1:])
	if err != nil {
		return 100
	}
	return score
}

// DiffMap maps absolute file paths to diff entries and remembers insertion order.
type DiffMap struct {
	keys    []string
	entries map[string]DiffEntry
}

// NewDiffMap returns an empty DiffMap.
func NewDiffMap() *DiffMap {
	return &DiffMap{entries: make(map[string]DiffEntry)}
}

// Set stores entry for path. An existing key keeps its position and is overwritten.
func (m *DiffMap) Set(path string, entry DiffEntry) {
	if _, ok := m.entries[path]; !ok {
		m.keys = append(m.keys, path)
	}
	m.entries[path] = entry
}

// Get returns the entry for path.
func (m *DiffMap) Get(path string) (DiffEntry, bool) {
	if m == nil {
		return DiffEntry{}, false
	}
	entry, ok := m.entries[path]
	return entry, ok
}

// StatusOf returns the status of path, or NoChange when the path is absent.
func (m *DiffMap) StatusOf(path string) Status {
	entry, ok := m.Get(path)
	if !ok {
		return StatusNoChange
	}
	return entry.Code()
}

// Delete removes path from the map.
func (m *DiffMap) Delete(path string) {
	if _, ok := m.entries[path]; !ok {
		return
	}
	delete(m.entries, path)
	for i, key := range m.keys {
		if key == path {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the paths in insertion order.
func (m *DiffMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Len returns the number of paths.
func (m *DiffMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Clone returns an independent copy.
func (m *DiffMap) Clone() *DiffMap {
	out := NewDiffMap()
	if m == nil {
		return out
	}
	for _, key := range m.keys {
		out.Set(key, m.entries[key])
	}
	return out
}

// Strings returns the map in its serialized path -> composite status form.
func (m *DiffMap) Strings() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for _, key := range m.keys {
		out[key] = m.entries[key].String()
	}
	return out
}
