// Package export applies classified outcomes to the target tree.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/chmouel/t262export/internal/classify"
	"github.com/chmouel/t262export/internal/curationlog"
	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/models"
)

// ErrTargetExists is returned when a new export would overwrite an existing target file.
var ErrTargetExists = errors.New("target file already exists")

const filePerm = 0o644

// Curation is the part of the curation log the executor updates.
type Curation interface {
	Block(base string)
	Unblock(base string)
	Rename(from, to string)
	Drop(base string)
}

var _ Curation = (*curationlog.Store)(nil)

type handler func(e *Executor, ctx context.Context, token models.FileToken) error

// handlers holds one entry per outcome.
var handlers = map[models.Outcome]handler{
	models.OutcomeDoNotExport:                     (*Executor).doNotExport,
	models.OutcomeDoNotExportAndBlock:             (*Executor).block,
	models.OutcomeExportAndOverwrite:              (*Executor).overwrite,
	models.OutcomeAppendModifiedWithNewSource:     (*Executor).appendNoteAndSource,
	models.OutcomeReExportWithNoteOnDeletion:      (*Executor).reExport,
	models.OutcomeReExportRenamedWithNote:         (*Executor).reExport,
	models.OutcomeReExportNewExtensionWithNote:    (*Executor).reExport,
	models.OutcomeDeleteTarget:                    (*Executor).deleteTarget,
	models.OutcomeRenameTarget:                    (*Executor).renameTarget,
	models.OutcomeAppendNoteOnSourceDeletion:      (*Executor).appendNote,
	models.OutcomeRenameModifiedWithNote:          (*Executor).renameModified,
	models.OutcomeUpdateExtensionModifiedWithNote: (*Executor).appendNoteAndSource,
	models.OutcomeExportFile:                      (*Executor).exportFile,
	models.OutcomeUpdateExtensionOnTarget:         (*Executor).overwrite,
}

// Executor mutates the target tree for classified files.
type Executor struct {
	fs       afero.Fs
	layout   classify.Layout
	curation Curation
	now      func() time.Time

	// current is the outcome being applied; notes are chosen from it.
	current models.Outcome
}

// Option customizes an Executor.
type Option func(*Executor)

// WithClock overrides the time stamped into notes.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor returns an Executor writing through fsys.
func NewExecutor(fsys afero.Fs, layout classify.Layout, curation Curation, opts ...Option) *Executor {
	e := &Executor{fs: fsys, layout: layout, curation: curation, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply runs every bucket in outcome order. The first failure inside a bucket stops that
// bucket; failures of all buckets are joined.
func (e *Executor) Apply(ctx context.Context, buckets *models.OutcomeBuckets) error {
	var errs []error
	for _, outcome := range models.AllOutcomes() {
		h, ok := handlers[outcome]
		if !ok {
			errs = append(errs, fmt.Errorf("no handler for outcome %s", outcome))
			continue
		}
		e.current = outcome
		for _, token := range buckets.Files(outcome) {
			if err := h(e, ctx, token); err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", outcome, token, err))
				break
			}
			log.With("outcome", outcome.String(), "file", token.String()).Debugf("applied")
		}
	}
	return errors.Join(errs...)
}

func (e *Executor) sourcePath(base string) string {
	return e.layout.SourceDirectory + base
}

func (e *Executor) targetPath(base string) string {
	return e.layout.TargetDirectory + base
}

// renamed returns the base paths before and after the source rename carried by token.
func renamed(token models.FileToken) (from, to string) {
	if token.Rename == nil {
		return token.Path, token.Path
	}
	return token.Rename.From, token.Rename.To
}

func (e *Executor) doNotExport(_ context.Context, token models.FileToken) error {
	exists, err := afero.Exists(e.fs, e.targetPath(token.Path))
	if err != nil {
		return err
	}
	if !exists {
		e.curation.Drop(token.Path)
	}
	return nil
}

func (e *Executor) block(_ context.Context, token models.FileToken) error {
	e.curation.Block(token.Path)
	return nil
}

func (e *Executor) overwrite(_ context.Context, token models.FileToken) error {
	return e.copyFile(e.sourcePath(token.Path), e.targetPath(token.Path))
}

func (e *Executor) exportFile(_ context.Context, token models.FileToken) error {
	dst := e.targetPath(token.Path)
	exists, err := afero.Exists(e.fs, dst)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s: %w", dst, ErrTargetExists)
	}
	return e.copyFile(e.sourcePath(token.Path), dst)
}

func (e *Executor) appendNote(_ context.Context, token models.FileToken) error {
	return e.writeNote(e.targetPath(token.Path))
}

func (e *Executor) appendNoteAndSource(_ context.Context, token models.FileToken) error {
	dst := e.targetPath(token.Path)
	if err := e.writeNote(dst); err != nil {
		return err
	}
	return e.appendFile(e.sourcePath(token.Path), dst)
}

func (e *Executor) reExport(_ context.Context, token models.FileToken) error {
	from, to := renamed(token)
	dst := e.targetPath(to)
	if err := e.copyFile(e.sourcePath(to), dst); err != nil {
		return err
	}
	if err := e.writeNote(dst); err != nil {
		return err
	}
	e.curation.Unblock(from)
	if to != from {
		e.curation.Unblock(to)
	}
	return nil
}

func (e *Executor) deleteTarget(_ context.Context, token models.FileToken) error {
	err := e.fs.Remove(e.targetPath(token.Path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (e *Executor) renameTarget(_ context.Context, token models.FileToken) error {
	from, to := renamed(token)
	if err := e.move(from, to); err != nil {
		return err
	}
	if token.Rename != nil && !token.IsPureRename() {
		if err := e.copyFile(e.sourcePath(to), e.targetPath(to)); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) renameModified(_ context.Context, token models.FileToken) error {
	from, to := renamed(token)
	if err := e.move(from, to); err != nil {
		return err
	}
	dst := e.targetPath(to)
	if err := e.writeNote(dst); err != nil {
		return err
	}
	if token.Rename != nil && !token.IsPureRename() {
		return e.appendFile(e.sourcePath(to), dst)
	}
	return nil
}

func (e *Executor) move(from, to string) error {
	if from == to {
		return nil
	}
	dst := e.targetPath(to)
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	if err := e.fs.Rename(e.targetPath(from), dst); err != nil {
		return err
	}
	e.curation.Rename(from, to)
	return nil
}

func (e *Executor) copyFile(src, dst string) error {
	data, err := afero.ReadFile(e.fs, src)
	if err != nil {
		return err
	}
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return afero.WriteFile(e.fs, dst, data, filePerm)
}

func (e *Executor) appendFile(src, dst string) error {
	data, err := afero.ReadFile(e.fs, src)
	if err != nil {
		return err
	}
	return e.appendBytes(dst, data)
}

func (e *Executor) writeNote(dst string) error {
	text, err := RenderNote(e.current, e.now())
	if err != nil {
		return err
	}
	return e.appendBytes(dst, []byte(text))
}

func (e *Executor) appendBytes(dst string, data []byte) error {
	if err := e.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	f, err := e.fs.OpenFile(dst, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
