package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/chmouel/t262export/internal/classify"
	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/curation"
	"github.com/chmouel/t262export/internal/curationlog"
	"github.com/chmouel/t262export/internal/diffparse"
	"github.com/chmouel/t262export/internal/export"
	"github.com/chmouel/t262export/internal/github"
	log "github.com/chmouel/t262export/internal/log"
	"github.com/chmouel/t262export/internal/metrics"
	"github.com/chmouel/t262export/internal/models"
	"github.com/chmouel/t262export/internal/report"
)

// commitTag prefixes every automation commit.
const commitTag = "test262-automation"

type publisher interface {
	Publish(ctx context.Context, req github.Request) (*github.PullRequest, error)
}

var _ publisher = (*github.Manager)(nil)

// Options tunes one run.
type Options struct {
	DryRun        bool // stop after classification
	PullRequest   bool // push the branch and open the pull request
	Debug         bool
	KeepWorkspace bool
	TempDir       string // parent of the workspace, empty for the system default
	RunID         string // generated when empty
	Stdout        io.Writer
	Fs            afero.Fs
	Publisher     publisher // built from the GitHub configuration when nil
	Now           func() time.Time
}

// Result describes a finished run.
type Result struct {
	RunID       string
	Workspace   *models.Workspace
	Buckets     *models.OutcomeBuckets
	Body        string
	Committed   bool
	PullRequest *github.PullRequest
}

func (o *Options) defaults() {
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Classify prepares the workspace and prints the outcome summary and pull request body
// without mutating either repository.
func Classify(ctx context.Context, gitSvc gitService, cfg *config.ExportConfig, opts Options) (*Result, error) {
	opts.DryRun = true
	opts.PullRequest = false
	return Export(ctx, gitSvc, cfg, opts)
}

// Export runs a complete export: classify, apply, record the revisions, commit and,
// when asked, push and open the pull request.
func Export(ctx context.Context, gitSvc gitService, cfg *config.ExportConfig, opts Options) (result *Result, err error) {
	opts.defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.PullRequest && opts.Publisher == nil {
		if err := cfg.ValidateGitHub(); err != nil {
			return nil, err
		}
	}

	started := opts.Now()
	result = &Result{RunID: opts.RunID}
	var recorder *metrics.Recorder
	if cfg.MetricsFile != "" {
		recorder = metrics.NewRecorder(cfg.ImplementerName)
		defer func() {
			if result.Buckets != nil {
				recorder.ObserveBuckets(result.Buckets)
			}
			recorder.ObserveRun(started, opts.Now(), err)
			if werr := recorder.WriteFile(cfg.MetricsFile); werr != nil {
				log.Warnf("metrics: %v", werr)
			}
		}()
	}

	ws, store, err := prepareWorkspace(ctx, gitSvc, opts.Fs, cfg, opts)
	result.Workspace = ws
	defer func() { cleanupWorkspace(opts, result, err) }()
	if err != nil {
		return result, err
	}

	sourceRevision, targetRevision := store.Revisions()
	buckets, err := classifyChanges(ctx, gitSvc, cfg, ws, store)
	if err != nil {
		return result, err
	}
	result.Buckets = buckets
	report.Summary(opts.Stdout, buckets)

	result.Body, err = report.NewReporter(cfg.TargetSubDirectory).Markdown(report.Input{
		Vendor:    cfg.ImplementerName,
		SourceSha: sourceRevision,
		TargetSha: targetRevision,
		RunID:     opts.RunID,
		Buckets:   buckets,
	})
	if err != nil {
		return result, fmt.Errorf("render report: %w", err)
	}

	if opts.DryRun {
		_, _ = fmt.Fprintln(opts.Stdout, result.Body)
		return result, nil
	}
	if !buckets.HasChanges() {
		log.Printf("no changes found since %s", targetRevision)
		return result, nil
	}

	layout := classify.Layout{TargetDirectory: ws.TargetDirectory, SourceDirectory: ws.SourceDirectory}
	executor := export.NewExecutor(opts.Fs, layout, store, export.WithClock(opts.Now))
	if err := executor.Apply(ctx, buckets); err != nil {
		return result, fmt.Errorf("apply outcomes: %w", err)
	}

	if err := recordRevisions(ctx, gitSvc, ws, store); err != nil {
		return result, err
	}

	message := fmt.Sprintf("Changes from %s at sha %s on %s", cfg.SourceGit, sourceRevision, opts.Now().UTC().Format(time.RFC1123))
	if result.Committed, err = commit(ctx, gitSvc, cfg, ws, message); err != nil {
		return result, err
	}
	if !result.Committed || !opts.PullRequest {
		return result, nil
	}

	result.PullRequest, err = publish(ctx, gitSvc, cfg, ws, opts, result.Body)
	if result.PullRequest != nil {
		_, _ = fmt.Fprintf(opts.Stdout, "Pull request #%d: %s\n", result.PullRequest.Number, result.PullRequest.HTMLURL)
	}
	return result, err
}

// classifyChanges collects, parses and classifies the three diffs of ws.
func classifyChanges(ctx context.Context, gitSvc gitService, cfg *config.ExportConfig, ws *models.Workspace, store *curationlog.Store) (*models.OutcomeBuckets, error) {
	sourceRevision, targetRevision := store.Revisions()

	raw, err := collectDiffs(ctx, gitSvc, ws, sourceRevision, targetRevision)
	if err != nil {
		return nil, err
	}

	checker, err := curation.NewHistoryChecker(gitSvc)
	if err != nil {
		return nil, err
	}
	maps, err := parseDiffs(ctx, diffparse.NewParser(checker), cfg, ws, raw, targetRevision)
	if err != nil {
		return nil, err
	}
	log.Debugf("diffs: target=%d source=%d combined=%d", maps.Target.Len(), maps.Source.Len(), maps.Combined.Len())

	return classify.NewClassifier(checker).Classify(ctx, classify.Input{
		Target:             maps.Target,
		Source:             maps.Source,
		Combined:           maps.Combined,
		Layout:             classify.Layout{TargetDirectory: ws.TargetDirectory, SourceDirectory: ws.SourceDirectory},
		Since:              targetRevision,
		IgnoredMaintainers: cfg.IgnoredMaintainers,
		Blocked:            store.Blocked(),
	})
}

// recordRevisions stores the current heads of both clones and flushes the curation log.
func recordRevisions(ctx context.Context, gitSvc gitService, ws *models.Workspace, store *curationlog.Store) error {
	sourceHead, err := gitSvc.LastRevision(ctx, ws.SourceRoot, ws.Branch)
	if err != nil {
		return err
	}
	targetHead, err := gitSvc.LastRevision(ctx, ws.TargetRoot, ws.Branch)
	if err != nil {
		return err
	}
	store.SetRevisions(sourceHead, targetHead)
	return store.Save()
}

// commit stages the target directory and the curation log. It reports false when
// nothing was staged.
func commit(ctx context.Context, gitSvc gitService, cfg *config.ExportConfig, ws *models.Workspace, message string) (bool, error) {
	targetRel, err := filepath.Rel(ws.TargetRoot, ws.TargetDirectory)
	if err != nil {
		return false, fmt.Errorf("locate target directory: %w", err)
	}
	if err := gitSvc.AddPaths(ctx, ws.TargetRoot, targetRel, cfg.CurationLogPath); err != nil {
		return false, err
	}
	staged, err := gitSvc.HasStagedChanges(ctx, ws.TargetRoot)
	if err != nil || !staged {
		return false, err
	}
	tagged := fmt.Sprintf("[%s-%s] %s", cfg.ImplementerName, commitTag, message)
	if err := gitSvc.Commit(ctx, ws.TargetRoot, tagged); err != nil {
		return false, err
	}
	return true, nil
}

// publish pushes the export branch and opens or updates its pull request.
func publish(ctx context.Context, gitSvc gitService, cfg *config.ExportConfig, ws *models.Workspace, opts Options, body string) (*github.PullRequest, error) {
	remote := cfg.GitHub.Org
	if err := gitSvc.AddRemote(ctx, ws.TargetRoot, remote, cfg.PushRemote); err != nil {
		return nil, err
	}
	if err := gitSvc.Push(ctx, ws.TargetRoot, remote, ws.Branch); err != nil {
		return nil, err
	}

	pub := opts.Publisher
	if pub == nil {
		client, err := github.NewClient(ctx, github.Config{
			APIURL:     cfg.GitHub.APIURL,
			Org:        cfg.GitHub.Org,
			Repo:       cfg.GitHub.RepoName,
			BaseBranch: cfg.GitHub.BaseBranch,
			Username:   cfg.GitHub.Username,
			Token:      cfg.GitHub.Token,
		})
		if err != nil {
			return nil, err
		}
		pub = github.NewManager(client)
	}

	title := cfg.PullRequestTitle
	if title == "" {
		title = "Import JavaScript Test Changes from " + cfg.ImplementerName
	}
	return pub.Publish(ctx, github.Request{
		Branch: ws.Branch,
		Title:  title,
		Body:   body,
		Labels: cfg.PullRequestLabels,
	})
}

// cleanupWorkspace removes the workspace unless it holds something worth inspecting:
// a failure, or a commit that was not published.
func cleanupWorkspace(opts Options, result *Result, err error) {
	ws := result.Workspace
	if ws == nil || ws.TempDir == "" {
		return
	}
	unpublished := result.Committed && result.PullRequest == nil
	if opts.KeepWorkspace || opts.Debug || err != nil || unpublished {
		log.Printf("workspace kept at %s", ws.TempDir)
		return
	}
	if rerr := os.RemoveAll(ws.TempDir); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
		log.Warnf("remove workspace %s: %v", ws.TempDir, rerr)
	}
}
