// Package cli runs exports: it prepares the clones, classifies the changes and
// publishes the result.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/curationlog"
	"github.com/chmouel/t262export/internal/git"
	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/models"
)

const (
	targetCloneDir = "target"
	sourceCloneDir = "source"
)

var osMkdirTemp = os.MkdirTemp

type gitService interface {
	Clone(ctx context.Context, remote, branch, parentDir, dirName string, depth int) (string, error)
	CheckoutNewBranch(ctx context.Context, dir, branch string) error
	Diff(ctx context.Context, dir, from, to string) (string, error)
	DiffNoIndex(ctx context.Context, dir, a, b string) (string, error)
	AuthorsSince(ctx context.Context, dir, since, filename string) ([]string, error)
	LastRevision(ctx context.Context, dir, branch string) (string, error)
	AddPaths(ctx context.Context, dir string, paths ...string) error
	HasStagedChanges(ctx context.Context, dir string) (bool, error)
	Commit(ctx context.Context, dir, message string) error
	AddRemote(ctx context.Context, dir, name, url string) error
	Push(ctx context.Context, dir, remote, branch string) error
}

var _ gitService = (*git.Service)(nil)

// BranchName returns the export branch name. Debug runs use suffix instead of the
// target revision so repeated runs do not collide.
func BranchName(cfg *config.ExportConfig, targetRevision, suffix string, debug bool) string {
	postfix := targetRevision
	if debug {
		postfix = suffix
	}
	return fmt.Sprintf("%s-%s-%s", cfg.ImplementerName, cfg.NewBranchNameForMerge, postfix)
}

// prepareWorkspace clones both repositories into a fresh temporary directory, loads the
// curation log and checks out the export branch in both clones.
func prepareWorkspace(ctx context.Context, gitSvc gitService, fsys afero.Fs, cfg *config.ExportConfig, opts Options) (*models.Workspace, *curationlog.Store, error) {
	tempDir, err := osMkdirTemp(opts.TempDir, "t262export-")
	if err != nil {
		return nil, nil, fmt.Errorf("create workspace: %w", err)
	}
	log.Printf("workspace: %s", tempDir)

	ws := &models.Workspace{TempDir: tempDir}

	if ws.TargetRoot, err = gitSvc.Clone(ctx, cfg.TargetGit, cfg.TargetBranch, tempDir, targetCloneDir, cfg.CloneDepth); err != nil {
		return ws, nil, err
	}
	if ws.SourceRoot, err = gitSvc.Clone(ctx, cfg.SourceGit, cfg.SourceBranch, tempDir, sourceCloneDir, cfg.CloneDepth); err != nil {
		return ws, nil, err
	}
	ws.TargetDirectory = filepath.Join(ws.TargetRoot, cfg.TargetSubDirectory)
	ws.SourceDirectory = filepath.Join(ws.SourceRoot, cfg.SourceSubDirectory)
	ws.CurationLogPath = filepath.Join(ws.TargetRoot, cfg.CurationLogPath)

	store, err := curationlog.Load(fsys, ws.CurationLogPath)
	if err != nil {
		return ws, nil, err
	}
	_, targetRevision := store.Revisions()
	log.Debugf("curation log %s: %d curated files, last export at %s", store.Path(), len(store.Files()), targetRevision)

	ws.Branch = BranchName(cfg, targetRevision, shortID(opts.RunID), opts.Debug)
	for _, root := range []string{ws.TargetRoot, ws.SourceRoot} {
		if err := gitSvc.CheckoutNewBranch(ctx, root, ws.Branch); err != nil {
			return ws, nil, err
		}
	}

	if err := fsys.MkdirAll(ws.TargetDirectory, 0o755); err != nil {
		return ws, nil, fmt.Errorf("create target directory: %w", err)
	}
	return ws, store, nil
}

// sourceExcludes anchors the configured excludes under the source directory.
func sourceExcludes(ws *models.Workspace, excludes []string) []string {
	out := make([]string, 0, len(excludes))
	for _, e := range excludes {
		out = append(out, filepath.Join(ws.SourceDirectory, e))
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
