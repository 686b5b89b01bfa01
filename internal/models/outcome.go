package models

import "fmt"

// Outcome is the export action classified for a single file.
type Outcome int

// Outcomes in table order. The numeric values are persisted in reports and must not change.
const (
	OutcomeDoNotExport Outcome = iota
	OutcomeDoNotExportAndBlock
	OutcomeExportAndOverwrite
	OutcomeAppendModifiedWithNewSource
	OutcomeReExportWithNoteOnDeletion
	OutcomeReExportRenamedWithNote
	OutcomeReExportNewExtensionWithNote
	OutcomeDeleteTarget
	OutcomeRenameTarget
	OutcomeAppendNoteOnSourceDeletion
	OutcomeRenameModifiedWithNote
	OutcomeUpdateExtensionModifiedWithNote
	OutcomeExportFile
	OutcomeUpdateExtensionOnTarget

	outcomeCount
)

var outcomeNames = [outcomeCount]string{
	"DO_NOT_EXPORT",
	"DO_NOT_EXPORT_AND_BLOCK_FUTURE_EXPORTS",
	"EXPORT_AND_OVERWRITE_PREVIOUS_VERSION",
	"APPEND_MODIFIED_TARGET_WITH_NOTE_AND_NEW_SOURCE",
	"RE_EXPORT_SOURCE_WITH_NOTE_ON_PREVIOUS_TARGET_DELETION",
	"RE_EXPORT_RENAMED_SOURCE_WITH_NOTE_ON_PREVIOUS_TARGET_DELETION",
	"RE_EXPORT_SOURCE_NEW_EXTENSION_WITH_NOTE_ON_PREVIOUS_TARGET_DELETION_AND_EXTENSION",
	"DELETE_TARGET_FILE",
	"RENAME_TARGET_FILE",
	"APPEND_MODIFIED_TARGET_WITH_NOTE_ON_SOURCE_DELETION",
	"RENAME_MODIFIED_TARGET_FILE_WITH_NOTE_ON_RENAME",
	"UPDATE_EXTENSION_ON_MODIFIED_TARGET_FILE_WITH_NOTE_ON_EXTENSION_CHANGE",
	"EXPORT_FILE",
	"UPDATE_EXTENSION_ON_TARGET_FILE",
}

// AllOutcomes returns every outcome in table order.
func AllOutcomes() []Outcome {
	out := make([]Outcome, 0, outcomeCount)
	for o := Outcome(0); o < outcomeCount; o++ {
		out = append(out, o)
	}
	return out
}

// Valid reports whether o is one of the fourteen defined outcomes.
func (o Outcome) Valid() bool {
	return o >= 0 && o < outcomeCount
}

func (o Outcome) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// RenameInfo describes the source-side rename carried by a bucket entry.
type RenameInfo struct {
	Status     string // raw code, e.g. "R100"
	Similarity int
	From       string // base path before the rename
	To         string // base path after the rename
}

// FileToken is a single bucket entry.
type FileToken struct {
	Path   string // base path relative to the synced directories
	Rename *RenameInfo
}

// String renders the plain base path, or "<status>,<from>,<to>" for renames.
func (t FileToken) String() string {
	if t.Rename != nil {
		return fmt.Sprintf("%s,%s,%s", t.Rename.Status, t.Rename.From, t.Rename.To)
	}
	return t.Path
}

// IsPureRename reports whether the token is a rename without content change.
func (t FileToken) IsPureRename() bool {
	return t.Rename != nil && t.Rename.Similarity >= 100
}

// OutcomeBuckets groups classified files by outcome.
type OutcomeBuckets struct {
	files map[Outcome][]FileToken
}

// NewOutcomeBuckets returns buckets with an empty list for every outcome.
func NewOutcomeBuckets() *OutcomeBuckets {
	b := &OutcomeBuckets{files: make(map[Outcome][]FileToken, outcomeCount)}
	for _, o := range AllOutcomes() {
		b.files[o] = []FileToken{}
	}
	return b
}

// Add appends token to the outcome's bucket.
func (b *OutcomeBuckets) Add(o Outcome, token FileToken) {
	b.files[o] = append(b.files[o], token)
}

// Files returns the tokens of an outcome in classification order.
func (b *OutcomeBuckets) Files(o Outcome) []FileToken {
	return b.files[o]
}

// Count returns the number of files in an outcome.
func (b *OutcomeBuckets) Count(o Outcome) int {
	return len(b.files[o])
}

// Total returns the number of classified files across every outcome.
func (b *OutcomeBuckets) Total() int {
	total := 0
	for _, files := range b.files {
		total += len(files)
	}
	return total
}

// Empty reports whether nothing was classified.
func (b *OutcomeBuckets) Empty() bool {
	return b.Total() == 0
}

// HasChanges reports whether any outcome other than DO_NOT_EXPORT was classified.
func (b *OutcomeBuckets) HasChanges() bool {
	return b.Total() > b.Count(OutcomeDoNotExport)
}

// Strings returns every bucket in its serialized token form, keyed by outcome.
func (b *OutcomeBuckets) Strings() map[Outcome][]string {
	out := make(map[Outcome][]string, len(b.files))
	for o, files := range b.files {
		tokens := make([]string, 0, len(files))
		for _, f := range files {
			tokens = append(tokens, f.String())
		}
		out[o] = tokens
	}
	return out
}
