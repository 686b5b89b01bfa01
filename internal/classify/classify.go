package classify

import (
	"context"
	"fmt"

	"github.com/chmouel/t262export/internal/curation"
	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/models"
)

// HumanEditChecker decides whether a file was curated by a human since a revision.
type HumanEditChecker interface {
	WasModifiedByHuman(ctx context.Context, q curation.Query) (bool, error)
}

var _ HumanEditChecker = (*curation.HistoryChecker)(nil)

// Input is everything one classification pass needs.
type Input struct {
	Target   *models.DiffMap // target changes since the last export
	Source   *models.DiffMap // source changes since the last export
	Combined *models.DiffMap // direct target vs source comparison
	Layout   Layout

	Since              string // target revision at last export
	IgnoredMaintainers []string
	Blocked            map[string]bool // base paths blocked by the curation log
}

// Classifier sorts changed files into outcome buckets.
type Classifier struct {
	checker HumanEditChecker
}

// NewClassifier returns a Classifier consulting checker for target-only modifications.
func NewClassifier(checker HumanEditChecker) *Classifier {
	return &Classifier{checker: checker}
}

// Classify buckets every path of in.Combined. The input maps are not modified.
func (c *Classifier) Classify(ctx context.Context, in Input) (*models.OutcomeBuckets, error) {
	combined := in.Combined.Clone()
	reconcile(combined, in)

	buckets := models.NewOutcomeBuckets()
	for _, path := range combined.Keys() {
		id := in.Layout.Identity(path, in.Source)
		targetStatus := in.Target.StatusOf(id.TargetFilePath)

		sourceStatus := models.StatusNoChange
		sourceEntry, ok := in.Source.Get(id.SourceFilePath)
		if ok {
			sourceStatus = sourceEntry.Code()
		}

		if in.Blocked[id.BaseFilePath] {
			if sourceStatus == models.StatusNoChange {
				log.Debugf("skip blocked %s", id.BaseFilePath)
				continue
			}
			if targetStatus == models.StatusNoChange {
				targetStatus = models.StatusDeleted
			}
		}

		skip, err := c.skip(ctx, in, id, targetStatus, sourceStatus)
		if err != nil {
			return nil, err
		}
		if skip {
			continue
		}

		pair := models.PairOf(targetStatus, sourceStatus)
		outcome, ok := Lookup(pair)
		if !ok {
			return nil, &UnsupportedScenarioError{Pair: pair, Path: path}
		}

		token := models.FileToken{Path: id.BaseFilePath}
		if id.RenamedFilePath != "" {
			token.Rename = &models.RenameInfo{
				Status:     sourceEntry.Status,
				Similarity: sourceEntry.Similarity(),
				From:       id.BaseFilePath,
				To:         id.RenamedBaseFilePath,
			}
		}
		log.With("file", id.BaseFilePath, "pair", string(pair)).Debugf("classified as %s", outcome)
		buckets.Add(outcome, token)
	}

	return buckets, nil
}

// reconcile records files deleted on both sides, or deleted in the target and renamed in
// the source, which the direct comparison cannot see.
func reconcile(combined *models.DiffMap, in Input) {
	for _, path := range in.Target.Keys() {
		if in.Target.StatusOf(path) != models.StatusDeleted {
			continue
		}
		id := in.Layout.Identity(path, in.Source)
		entry, ok := in.Source.Get(id.SourceFilePath)
		if !ok {
			continue
		}
		switch entry.Code() {
		case models.StatusDeleted:
			combined.Set(id.SourceFilePath, models.DiffEntry{Status: string(models.StatusDeleted)})
		case models.StatusRenamed:
			if id.RenamedFilePath != "" {
				combined.Delete(id.RenamedFilePath)
			}
			combined.Set(id.SourceFilePath, models.DiffEntry{Status: string(models.StatusRenamed)})
		}
	}
}

func (c *Classifier) skip(ctx context.Context, in Input, id models.FileIdentity, target, source models.Status) (bool, error) {
	if source != models.StatusNoChange {
		return false, nil
	}
	switch target {
	case models.StatusNoChange, models.StatusAdded, models.StatusRenamed:
		// Additions and renames in the target were vetted by the parser.
		return true, nil
	case models.StatusModified:
		if c.checker == nil {
			return false, nil
		}
		human, err := c.checker.WasModifiedByHuman(ctx, curation.Query{
			Since:              in.Since,
			Directory:          in.Layout.TargetDirectory,
			Filename:           id.BaseFilePath,
			IgnoredMaintainers: in.IgnoredMaintainers,
		})
		if err != nil {
			return false, fmt.Errorf("check history of %s: %w", id.BaseFilePath, err)
		}
		return !human, nil
	}
	return false, nil
}
