package export

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/t262export/internal/classify"
	"github.com/chmouel/t262export/internal/models"
)

const (
	targetDir = "/run/webkit/JSTests/test262"
	sourceDir = "/run/test262/test"
)

var fixedTime = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

type fakeCuration struct {
	calls []string
}

func (f *fakeCuration) Block(base string)      { f.calls = append(f.calls, "block "+base) }
func (f *fakeCuration) Unblock(base string)    { f.calls = append(f.calls, "unblock "+base) }
func (f *fakeCuration) Rename(from, to string) { f.calls = append(f.calls, "rename "+from+" "+to) }
func (f *fakeCuration) Drop(base string)       { f.calls = append(f.calls, "drop "+base) }

func newTestExecutor(t *testing.T) (*Executor, afero.Fs, *fakeCuration) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(targetDir, 0o755))
	require.NoError(t, fsys.MkdirAll(sourceDir, 0o755))
	cur := &fakeCuration{}
	layout := classify.Layout{TargetDirectory: targetDir, SourceDirectory: sourceDir}
	return NewExecutor(fsys, layout, cur, WithClock(func() time.Time { return fixedTime })), fsys, cur
}

func put(t *testing.T, fsys afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(content), 0o644))
}

func read(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	data, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(data)
}

func single(outcome models.Outcome, token models.FileToken) *models.OutcomeBuckets {
	b := models.NewOutcomeBuckets()
	b.Add(outcome, token)
	return b
}

func rename(status string, similarity int, from, to string) models.FileToken {
	return models.FileToken{Path: from, Rename: &models.RenameInfo{Status: status, Similarity: similarity, From: from, To: to}}
}

func TestEveryOutcomeHasAHandler(t *testing.T) {
	for _, outcome := range models.AllOutcomes() {
		assert.Contains(t, handlers, outcome, outcome.String())
	}
	assert.Len(t, handlers, len(models.AllOutcomes()))
}

func TestRenderNote(t *testing.T) {
	text, err := RenderNote(models.OutcomeAppendNoteOnSourceDeletion, fixedTime)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "\n/*\n"))
	assert.True(t, strings.HasSuffix(text, "*/\n"))
	assert.Contains(t, text, "********************************** test262-automation **********************************")
	assert.Contains(t, text, "Summary: Source file deleted after partial curation.")
	assert.Contains(t, text, "Source Status: Deleted since export.")
	assert.Contains(t, text, "This message was added on Sat Oct 17 2026 09:30:00 UTC")

	_, err = RenderNote(models.OutcomeExportFile, fixedTime)
	assert.Error(t, err)
}

func TestExportFileCopiesBytes(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	content := "// Copyright\n\x00binary\r\ntail"
	put(t, fsys, sourceDir+"/new/a.js", content)

	require.NoError(t, exec.Apply(context.Background(), single(models.OutcomeExportFile, models.FileToken{Path: "/new/a.js"})))
	assert.Equal(t, content, read(t, fsys, targetDir+"/new/a.js"))
}

func TestExportFileRefusesExistingTarget(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	put(t, fsys, sourceDir+"/a.js", "source")
	put(t, fsys, targetDir+"/a.js", "target")

	err := exec.Apply(context.Background(), single(models.OutcomeExportFile, models.FileToken{Path: "/a.js"}))
	require.ErrorIs(t, err, ErrTargetExists)
	assert.Equal(t, "target", read(t, fsys, targetDir+"/a.js"))
}

func TestDoNotExportLeavesFilesAlone(t *testing.T) {
	exec, fsys, cur := newTestExecutor(t)
	put(t, fsys, targetDir+"/kept.js", "curated")
	put(t, fsys, sourceDir+"/kept.js", "source")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeDoNotExport, models.FileToken{Path: "/kept.js"})
	b.Add(models.OutcomeDoNotExport, models.FileToken{Path: "/gone.js"})
	require.NoError(t, exec.Apply(context.Background(), b))

	assert.Equal(t, "curated", read(t, fsys, targetDir+"/kept.js"))
	assert.Equal(t, []string{"drop /gone.js"}, cur.calls)
}

func TestBlockAndReExport(t *testing.T) {
	exec, fsys, cur := newTestExecutor(t)
	put(t, fsys, sourceDir+"/re.js", "fresh")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeDoNotExportAndBlock, models.FileToken{Path: "/blocked.js"})
	b.Add(models.OutcomeReExportWithNoteOnDeletion, models.FileToken{Path: "/re.js"})
	require.NoError(t, exec.Apply(context.Background(), b))

	out := read(t, fsys, targetDir+"/re.js")
	assert.True(t, strings.HasPrefix(out, "fresh\n/*"))
	assert.Contains(t, out, "Fully curated & deleted")
	assert.Equal(t, []string{"block /blocked.js", "unblock /re.js"}, cur.calls)
}

func TestReExportRenamedSource(t *testing.T) {
	exec, fsys, cur := newTestExecutor(t)
	put(t, fsys, sourceDir+"/new.js", "renamed source")

	err := exec.Apply(context.Background(), single(models.OutcomeReExportRenamedWithNote, rename("R090", 90, "/old.js", "/new.js")))
	require.NoError(t, err)

	out := read(t, fsys, targetDir+"/new.js")
	assert.True(t, strings.HasPrefix(out, "renamed source"))
	assert.Contains(t, out, "Renamed since curation & deletion.")
	assert.Equal(t, []string{"unblock /old.js", "unblock /new.js"}, cur.calls)
}

func TestOverwriteAndAppend(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	put(t, fsys, sourceDir+"/o.js", "new source")
	put(t, fsys, targetDir+"/o.js", "old target")
	put(t, fsys, sourceDir+"/m.js", "source body")
	put(t, fsys, targetDir+"/m.js", "curated body")
	put(t, fsys, targetDir+"/d.js", "curated only")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeExportAndOverwrite, models.FileToken{Path: "/o.js"})
	b.Add(models.OutcomeAppendModifiedWithNewSource, models.FileToken{Path: "/m.js"})
	b.Add(models.OutcomeAppendNoteOnSourceDeletion, models.FileToken{Path: "/d.js"})
	require.NoError(t, exec.Apply(context.Background(), b))

	assert.Equal(t, "new source", read(t, fsys, targetDir+"/o.js"))

	m := read(t, fsys, targetDir+"/m.js")
	assert.True(t, strings.HasPrefix(m, "curated body\n/*"))
	assert.True(t, strings.HasSuffix(m, "*/\nsource body"))
	assert.Contains(t, m, "The two files have now diverged.")

	d := read(t, fsys, targetDir+"/d.js")
	assert.True(t, strings.HasPrefix(d, "curated only\n/*"))
	assert.Contains(t, d, "Deleted since export.")
}

func TestDeleteTarget(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	put(t, fsys, targetDir+"/x.js", "x")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeDeleteTarget, models.FileToken{Path: "/x.js"})
	b.Add(models.OutcomeDeleteTarget, models.FileToken{Path: "/already-gone.js"})
	require.NoError(t, exec.Apply(context.Background(), b))

	exists, err := afero.Exists(fsys, targetDir+"/x.js")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRenameTarget(t *testing.T) {
	t.Run("pure rename keeps content", func(t *testing.T) {
		exec, fsys, cur := newTestExecutor(t)
		put(t, fsys, targetDir+"/a.js", "target content")
		put(t, fsys, sourceDir+"/dir/b.js", "source content")

		require.NoError(t, exec.Apply(context.Background(), single(models.OutcomeRenameTarget, rename("R100", 100, "/a.js", "/dir/b.js"))))
		assert.Equal(t, "target content", read(t, fsys, targetDir+"/dir/b.js"))
		exists, err := afero.Exists(fsys, targetDir+"/a.js")
		require.NoError(t, err)
		assert.False(t, exists)
		assert.Equal(t, []string{"rename /a.js /dir/b.js"}, cur.calls)
	})

	t.Run("partial similarity takes the source", func(t *testing.T) {
		exec, fsys, _ := newTestExecutor(t)
		put(t, fsys, targetDir+"/a.js", "target content")
		put(t, fsys, sourceDir+"/b.js", "source content")

		require.NoError(t, exec.Apply(context.Background(), single(models.OutcomeRenameTarget, rename("R075", 75, "/a.js", "/b.js"))))
		assert.Equal(t, "source content", read(t, fsys, targetDir+"/b.js"))
	})
}

func TestRenameModifiedTarget(t *testing.T) {
	t.Run("pure rename appends the note only", func(t *testing.T) {
		exec, fsys, _ := newTestExecutor(t)
		put(t, fsys, targetDir+"/a.js", "curated")
		put(t, fsys, sourceDir+"/b.js", "source")

		require.NoError(t, exec.Apply(context.Background(), single(models.OutcomeRenameModifiedWithNote, rename("R100", 100, "/a.js", "/b.js"))))
		out := read(t, fsys, targetDir+"/b.js")
		assert.True(t, strings.HasPrefix(out, "curated\n/*"))
		assert.True(t, strings.HasSuffix(out, "*/\n"))
		assert.Contains(t, out, "Renamed since export.")
	})

	t.Run("partial similarity appends the source", func(t *testing.T) {
		exec, fsys, _ := newTestExecutor(t)
		put(t, fsys, targetDir+"/a.js", "curated")
		put(t, fsys, sourceDir+"/b.js", "source")

		require.NoError(t, exec.Apply(context.Background(), single(models.OutcomeRenameModifiedWithNote, rename("R060", 60, "/a.js", "/b.js"))))
		out := read(t, fsys, targetDir+"/b.js")
		assert.True(t, strings.HasSuffix(out, "*/\nsource"))
	})
}

func TestExtensionOutcomes(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	put(t, fsys, sourceDir+"/t.js", "typed")
	put(t, fsys, targetDir+"/t.js", "old")
	put(t, fsys, sourceDir+"/mt.js", "typed source")
	put(t, fsys, targetDir+"/mt.js", "curated")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeUpdateExtensionOnTarget, models.FileToken{Path: "/t.js"})
	b.Add(models.OutcomeUpdateExtensionModifiedWithNote, models.FileToken{Path: "/mt.js"})
	require.NoError(t, exec.Apply(context.Background(), b))

	assert.Equal(t, "typed", read(t, fsys, targetDir+"/t.js"))
	out := read(t, fsys, targetDir+"/mt.js")
	assert.Contains(t, out, "File type change since export.")
	assert.True(t, strings.HasSuffix(out, "typed source"))
}

func TestApplyStopsBucketAndJoinsErrors(t *testing.T) {
	exec, fsys, _ := newTestExecutor(t)
	put(t, fsys, sourceDir+"/ok.js", "ok")
	put(t, fsys, sourceDir+"/later.js", "later")
	put(t, fsys, sourceDir+"/o.js", "o")

	b := models.NewOutcomeBuckets()
	b.Add(models.OutcomeExportAndOverwrite, models.FileToken{Path: "/missing.js"})
	b.Add(models.OutcomeExportAndOverwrite, models.FileToken{Path: "/o.js"})
	b.Add(models.OutcomeExportFile, models.FileToken{Path: "/ok.js"})
	b.Add(models.OutcomeExportFile, models.FileToken{Path: "/absent.js"})
	b.Add(models.OutcomeExportFile, models.FileToken{Path: "/later.js"})

	err := exec.Apply(context.Background(), b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EXPORT_AND_OVERWRITE_PREVIOUS_VERSION /missing.js")
	assert.Contains(t, err.Error(), "EXPORT_FILE /absent.js")

	// The failing bucket stops at its first error, other buckets keep running.
	exists, _ := afero.Exists(fsys, targetDir+"/o.js")
	assert.False(t, exists)
	assert.Equal(t, "ok", read(t, fsys, targetDir+"/ok.js"))
	exists, _ = afero.Exists(fsys, targetDir+"/later.js")
	assert.False(t, exists)
}
