package export

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/chmouel/t262export/internal/models"
)

// Banner opens every note written into an exported file.
const Banner = "test262-automation"

// NoteTimeLayout formats the export timestamp inside notes.
const NoteTimeLayout = "Mon Jan 02 2006 15:04:05 MST"

var noteTemplate = template.Must(template.New("note").Parse(`
/*
********************************** {{.Banner}} **********************************
Summary: {{.Summary}}
File Status: {{.FileStatus}}
Source Status: {{.SourceStatus}}
{{.Closing}} {{.ExportDateTime}}
*/
`))

type note struct {
	Summary      string
	FileStatus   string
	SourceStatus string
	Closing      string
}

var notes = map[models.Outcome]note{
	models.OutcomeAppendModifiedWithNewSource: {
		Summary:      "The two files have now diverged.",
		FileStatus:   "Partially curated & modified.",
		SourceStatus: "Modified since its export.",
		Closing:      "Below is the current and modified source which was exported on",
	},
	models.OutcomeReExportWithNoteOnDeletion: {
		Summary:      "Source material changed after curation & deletion of exported file.",
		FileStatus:   "Fully curated & deleted",
		SourceStatus: "Modified since curation & deletion.",
		Closing:      "Below is the current and modified source which was exported on",
	},
	models.OutcomeReExportRenamedWithNote: {
		Summary:      "Source file renamed after curation & deletion of exported file.",
		FileStatus:   "Fully curated & deleted",
		SourceStatus: "Renamed since curation & deletion.",
		Closing:      "This file name and location now matches the source which was exported on",
	},
	models.OutcomeReExportNewExtensionWithNote: {
		Summary:      "Source file type changed after curation & deletion of exported file.",
		FileStatus:   "Fully curated & deleted",
		SourceStatus: "File type change since curation & deletion.",
		Closing:      "This file type now matches the new type of the source which was exported on",
	},
	models.OutcomeAppendNoteOnSourceDeletion: {
		Summary:      "Source file deleted after partial curation.",
		FileStatus:   "Partially curated & modified.",
		SourceStatus: "Deleted since export.",
		Closing:      "This message was added on",
	},
	models.OutcomeRenameModifiedWithNote: {
		Summary:      "Source file renamed after partial curation & modification of exported file.",
		FileStatus:   "Partially curated & modified.",
		SourceStatus: "Renamed since export.",
		Closing:      "This file name and location now matches the source which was exported on",
	},
	models.OutcomeUpdateExtensionModifiedWithNote: {
		Summary:      "Source file type changed after partial curation & modification of exported file.",
		FileStatus:   "Partially curated & modified.",
		SourceStatus: "File type change since export.",
		Closing:      "This file type and location now matches the source which was exported on",
	},
}

// RenderNote returns the comment block appended for outcome, stamped with at.
func RenderNote(outcome models.Outcome, at time.Time) (string, error) {
	n, ok := notes[outcome]
	if !ok {
		return "", fmt.Errorf("no note for outcome %s", outcome)
	}
	var buf bytes.Buffer
	err := noteTemplate.Execute(&buf, map[string]string{
		"Banner":         Banner,
		"Summary":        n.Summary,
		"FileStatus":     n.FileStatus,
		"SourceStatus":   n.SourceStatus,
		"Closing":        n.Closing,
		"ExportDateTime": at.UTC().Format(NoteTimeLayout),
	})
	if err != nil {
		return "", fmt.Errorf("render note for %s: %w", outcome, err)
	}
	return buf.String(), nil
}
