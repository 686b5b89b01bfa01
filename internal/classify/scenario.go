// Package classify derives one export outcome per changed file from the three diff maps.
package classify

import (
	"fmt"

	"github.com/chmouel/t262export/internal/models"
)

// ScenarioTable maps a target/source status pair to its outcome. Pairs not listed are unsupported.
var ScenarioTable = map[models.StatusPair]models.Outcome{
	"DD": models.OutcomeDoNotExport,
	"MN": models.OutcomeDoNotExport,

	"DN": models.OutcomeDoNotExportAndBlock,

	"NM": models.OutcomeExportAndOverwrite,
	"NA": models.OutcomeExportFile,
	"ND": models.OutcomeDeleteTarget,
	"NR": models.OutcomeRenameTarget,
	"NT": models.OutcomeUpdateExtensionOnTarget,

	"MA": models.OutcomeAppendModifiedWithNewSource,
	"MM": models.OutcomeAppendModifiedWithNewSource,
	"MD": models.OutcomeAppendNoteOnSourceDeletion,
	"MR": models.OutcomeRenameModifiedWithNote,
	"MT": models.OutcomeUpdateExtensionModifiedWithNote,

	"DA": models.OutcomeReExportWithNoteOnDeletion,
	"DM": models.OutcomeReExportWithNoteOnDeletion,
	"DR": models.OutcomeReExportRenamedWithNote,
	"DT": models.OutcomeReExportNewExtensionWithNote,
}

// Lookup returns the outcome of pair.
func Lookup(pair models.StatusPair) (models.Outcome, bool) {
	outcome, ok := ScenarioTable[pair]
	return outcome, ok
}

// UnsupportedScenarioError is returned for a status pair missing from ScenarioTable.
type UnsupportedScenarioError struct {
	Pair models.StatusPair
	Path string
}

func (e *UnsupportedScenarioError) Error() string {
	return fmt.Sprintf("unsupported scenario %s (target %s, source %s) for file %s", e.Pair, e.Pair.Target(), e.Pair.Source(), e.Path)
}
