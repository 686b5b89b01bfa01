package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/diffparse"
	"github.com/chmouel/t262export/internal/models"
)

// rawDiffs is the name-status output of the three comparisons of a run.
type rawDiffs struct {
	Target   string // target changes since the last export
	Source   string // source changes since the last export
	Combined string // target directory against source directory
}

// diffMaps holds the parsed comparisons.
type diffMaps struct {
	Target   *models.DiffMap
	Source   *models.DiffMap
	Combined *models.DiffMap
}

// collectDiffs runs the three read-only diffs concurrently.
func collectDiffs(ctx context.Context, gitSvc gitService, ws *models.Workspace, sourceRevision, targetRevision string) (rawDiffs, error) {
	var raw rawDiffs

	targetRel, err := filepath.Rel(ws.TempDir, ws.TargetDirectory)
	if err != nil {
		return raw, fmt.Errorf("locate target directory: %w", err)
	}
	sourceRel, err := filepath.Rel(ws.TempDir, ws.SourceDirectory)
	if err != nil {
		return raw, fmt.Errorf("locate source directory: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := gitSvc.Diff(gctx, ws.TargetRoot, targetRevision, "HEAD")
		if err != nil {
			return fmt.Errorf("target diff: %w", err)
		}
		raw.Target = out
		return nil
	})
	g.Go(func() error {
		out, err := gitSvc.Diff(gctx, ws.SourceRoot, sourceRevision, "HEAD")
		if err != nil {
			return fmt.Errorf("source diff: %w", err)
		}
		raw.Source = out
		return nil
	})
	g.Go(func() error {
		out, err := gitSvc.DiffNoIndex(gctx, ws.TempDir, targetRel, sourceRel)
		if err != nil {
			return fmt.Errorf("combined diff: %w", err)
		}
		raw.Combined = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return rawDiffs{}, err
	}
	return raw, nil
}

// parseDiffs normalizes the three diffs. Added or renamed target files only touched by the
// automation pass the target status check.
func parseDiffs(ctx context.Context, parser *diffparse.Parser, cfg *config.ExportConfig, ws *models.Workspace, raw rawDiffs, targetRevision string) (diffMaps, error) {
	var maps diffMaps
	targetPattern := diffparse.DirectoryPattern(ws.TargetDirectory)
	sourcePattern := diffparse.DirectoryPattern(ws.SourceDirectory)

	var err error
	maps.Target, err = parser.Parse(ctx, raw.Target, diffparse.Options{
		Includes:      []string{targetPattern},
		ErrorStatuses: diffparse.TargetErrorStatuses,
		RootDir:       ws.TargetRoot,
		Escape: &diffparse.EscapeOptions{
			SourceDirectory:    ws.SourceDirectory,
			TargetDirectory:    ws.TargetDirectory,
			Since:              targetRevision,
			IgnoredMaintainers: cfg.IgnoredMaintainers,
		},
	})
	if err != nil {
		return maps, fmt.Errorf("parse target diff: %w", err)
	}

	maps.Source, err = parser.Parse(ctx, raw.Source, diffparse.Options{
		Includes:      []string{sourcePattern},
		ErrorStatuses: diffparse.SourceErrorStatuses,
		RootDir:       ws.SourceRoot,
	})
	if err != nil {
		return maps, fmt.Errorf("parse source diff: %w", err)
	}

	maps.Combined, err = parser.Parse(ctx, raw.Combined, diffparse.Options{
		Includes: []string{targetPattern, sourcePattern},
		Excludes: sourceExcludes(ws, cfg.SourceExcludes),
		RootDir:  ws.TempDir,
	})
	if err != nil {
		return maps, fmt.Errorf("parse combined diff: %w", err)
	}
	return maps, nil
}
