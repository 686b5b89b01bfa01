// Package report renders classified outcomes for pull requests and terminals.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize/english"

	"github.com/chmouel/t262export/internal/models"
)

type section struct {
	subTitle    string
	description string
}

// Section texts use {{.Count}}, {{.Vendor}}, {{.ContribDirectory}} and the plural helper.
var sections = map[models.Outcome]section{
	models.OutcomeDoNotExport: {
		subTitle: `{{.Count}} Ignored {{plural .Count "File"}}`,
		description: `These files were updated or added in the {{.Vendor}} repo but they
are not synced to test262 because they are excluded.`,
	},
	models.OutcomeDoNotExportAndBlock: {
		subTitle:    `{{.Count}} {{plural .Count "File"}} Classified as Fully Curated`,
		description: `These files will be ignored in future imports.`,
	},
	models.OutcomeExportAndOverwrite: {
		subTitle:    `{{.Count}} {{plural .Count "File"}} Updated From {{.Vendor}}`,
		description: `These files have been modified in {{.Vendor}}.`,
	},
	models.OutcomeAppendModifiedWithNewSource: {
		subTitle: `{{.Count}} {{plural .Count "File"}} with changes in both test262 and {{.Vendor}}`,
		description: `The updated version of these files will be appended to the end of the
original file with a code comment noting there was a curation in
progress.`,
	},
	models.OutcomeReExportWithNoteOnDeletion: {
		subTitle: `{{.Count}} {{plural .Count "File"}} Were Previously Curated Have Been Updated in {{.Vendor}}`,
		description: "These files have been reintroduced into the `{{.ContribDirectory}}`\n" +
			"directory with a comment specifying they were previously curated and\ndeleted.",
	},
	models.OutcomeReExportRenamedWithNote: {
		subTitle: `{{.Count}} {{plural .Count "File"}} Were Renamed in Test262 and Deleted in {{.Vendor}}`,
	},
	models.OutcomeReExportNewExtensionWithNote: {
		subTitle: `{{.Count}} {{plural .Count "File"}} Had Their Extension Updated in Test262 and Deleted in {{.Vendor}}`,
	},
	models.OutcomeDeleteTarget: {
		subTitle: `{{.Count}} {{plural .Count "File"}} Have Been Deleted in {{.Vendor}}`,
		description: "These files have been deleted in {{.Vendor}} and are removed from the\n" +
			"`{{.ContribDirectory}}` directory.",
	},
	models.OutcomeRenameTarget: {
		subTitle: `{{.Count}} {{plural .Count "File"}} Have Been Renamed`,
		description: "These files were renamed in {{.Vendor}} and have had their filenames\n" +
			"updated in `{{.ContribDirectory}}`.",
	},
	models.OutcomeAppendNoteOnSourceDeletion: {
		subTitle:    `{{.Count}} Partially Curated {{plural .Count "File"}} Have Been Deleted in {{.Vendor}}`,
		description: "A comment has been added to these files noting their deletion in\n{{.Vendor}}.",
	},
	models.OutcomeRenameModifiedWithNote: {
		subTitle: `{{.Count}} Partially Curated {{plural .Count "File"}} Have Been Renamed`,
		description: "These files were renamed in {{.Vendor}} and have had their filenames\n" +
			"updated in `{{.ContribDirectory}}`.",
	},
	models.OutcomeUpdateExtensionModifiedWithNote: {
		subTitle: `{{.Count}} Partially Curated {{plural .Count "File"}} have been Renamed to Match {{.Vendor}}`,
		description: "These files were renamed in {{.Vendor}} and have had their filenames\n" +
			"updated in `{{.ContribDirectory}}`.",
	},
	models.OutcomeExportFile: {
		subTitle: `{{.Count}} New {{plural .Count "File"}} Added in {{.Vendor}}`,
		description: "These are new files added in {{.Vendor}} and have been synced to the\n" +
			"`{{.ContribDirectory}}` directory.",
	},
	models.OutcomeUpdateExtensionOnTarget: {
		subTitle: `{{.Count}} {{plural .Count "File"}} with their Extension Updated`,
	},
}

var funcs = template.FuncMap{
	"plural": func(count int, word string) string {
		return english.PluralWord(count, word, "")
	},
}

// Input is the data one pull request body is built from.
type Input struct {
	Vendor    string // implementer the files come from
	SourceSha string
	TargetSha string
	RunID     string
	Buckets   *models.OutcomeBuckets
}

// Reporter renders pull request bodies.
type Reporter struct {
	contribDirectory string
}

// NewReporter returns a Reporter listing files under contribDirectory.
func NewReporter(contribDirectory string) *Reporter {
	return &Reporter{contribDirectory: contribDirectory}
}

// Markdown renders the heading, one section per non-empty outcome and the run footer.
func (r *Reporter) Markdown(in Input) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# Import JavaScript Test Changes from %s\n\n", in.Vendor)
	fmt.Fprintf(&b, "Changes imported in this pull request include all changes made since\n"+
		"`%s` in %s and all changes made since `%s` in\ntest262.\n", in.SourceSha, in.Vendor, in.TargetSha)

	for _, outcome := range models.AllOutcomes() {
		files := in.Buckets.Files(outcome)
		if len(files) == 0 {
			continue
		}
		text, err := r.section(outcome, files, in.Vendor)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
	}

	if in.RunID != "" {
		fmt.Fprintf(&b, "\n---\n\nExport run `%s`\n", in.RunID)
	}
	return b.String(), nil
}

func (r *Reporter) section(outcome models.Outcome, files []models.FileToken, vendor string) (string, error) {
	sec := sections[outcome]
	data := map[string]any{
		"Count":            len(files),
		"Vendor":           vendor,
		"ContribDirectory": r.contribDirectory,
	}

	subTitle, err := render(sec.subTitle, data)
	if err != nil {
		return "", fmt.Errorf("render %s title: %w", outcome, err)
	}
	description, err := render(sec.description, data)
	if err != nil {
		return "", fmt.Errorf("render %s description: %w", outcome, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n### %s\n\n", subTitle)
	if description != "" {
		fmt.Fprintf(&b, "%s\n\n", description)
	}
	for _, f := range files {
		fmt.Fprintf(&b, " - %s\n", r.fileLine(f))
	}
	return b.String(), nil
}

func (r *Reporter) fileLine(f models.FileToken) string {
	if f.Rename != nil {
		return fmt.Sprintf("%s%s -> %s%s (%s)", r.contribDirectory, f.Rename.From, r.contribDirectory, f.Rename.To, f.Rename.Status)
	}
	return r.contribDirectory + f.Path
}

func render(text string, data any) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New("section").Funcs(funcs).Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
