package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/git"
	"github.com/chmouel/t262export/internal/github"
	"github.com/chmouel/t262export/internal/models"
)

const (
	targetSub = "test/implementation-contributed/jsc"
	sourceSub = "JSTests/stress"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// isolateGit points git at a throwaway global config so commits work anywhere.
func isolateGit(t *testing.T) {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "gitconfig")
	content := "[user]\n\tname = Test\n\temail = test@example.com\n[commit]\n\tgpgsign = false\n[init]\n\tdefaultBranch = main\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o600))
	t.Setenv("GIT_CONFIG_GLOBAL", cfgPath)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func commitAll(t *testing.T, dir, message string) string {
	t.Helper()
	runGit(t, dir, "add", "--all")
	runGit(t, dir, "commit", "-q", "-m", message)
	return runGit(t, dir, "rev-parse", "HEAD")
}

type fixture struct {
	cfg    *config.ExportConfig
	target string
	source string
	base   string
}

// newFixture builds a source repository that changed since its last export and a target
// repository whose curation log points at the exported revisions.
func newFixture(t *testing.T) *fixture {
	return newFixtureWithChanges(t, true)
}

func newFixtureWithChanges(t *testing.T, changed bool) *fixture {
	t.Helper()
	requireGit(t)
	isolateGit(t)

	base := t.TempDir()
	source := filepath.Join(base, "source-origin")
	target := filepath.Join(base, "target-origin")
	for _, dir := range []string{source, target} {
		require.NoError(t, os.MkdirAll(dir, 0o755))
		runGit(t, dir, "init", "-q")
		runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/main")
	}

	writeFile(t, filepath.Join(source, sourceSub, "f.js"), "// original\n")
	writeFile(t, filepath.Join(source, "README"), "webkit\n")
	sourceRev := commitAll(t, source, "initial")

	writeFile(t, filepath.Join(target, targetSub, "f.js"), "// original\n")
	targetRev := commitAll(t, target, "initial export")
	writeCurationLog(t, target, sourceRev, targetRev)

	if changed {
		writeFile(t, filepath.Join(source, sourceSub, "f.js"), "// updated upstream\n")
		writeFile(t, filepath.Join(source, sourceSub, "g.js"), "// brand new test\n")
		writeFile(t, filepath.Join(source, sourceSub, "resources", "helper.js"), "// support file\n")
		commitAll(t, source, "more tests")
	}

	cfg := config.DefaultConfig()
	cfg.ImplementerName = "jsc"
	cfg.TargetGit, cfg.TargetBranch, cfg.TargetSubDirectory = target, "main", targetSub
	cfg.SourceGit, cfg.SourceBranch, cfg.SourceSubDirectory = source, "main", sourceSub
	cfg.SourceExcludes = []string{"resources"}
	cfg.IgnoredMaintainers = []string{"test262-automation"}
	cfg.CloneDepth = 0

	return &fixture{cfg: cfg, target: target, source: source, base: base}
}

// writeCurationLog records the revisions of the last export and commits the log.
func writeCurationLog(t *testing.T, target, sourceRev, targetRev string) {
	t.Helper()
	logData, err := json.Marshal(models.CurationLog{
		SourceRevisionAtLastExport: sourceRev,
		TargetRevisionAtLastExport: targetRev,
		CuratedFiles:               map[string]string{},
	})
	require.NoError(t, err)
	writeFile(t, filepath.Join(target, config.DefaultCurationLogPath), string(logData))
	commitAll(t, target, "curation log")
}

func newTestService() *git.Service {
	svc := git.NewService(nil, nil)
	svc.SetAuthor(git.Author{Name: "test262-automation", Email: "automation@example.com"})
	return svc
}

func fixedNow() time.Time {
	return time.Date(2026, time.October, 17, 9, 30, 0, 0, time.UTC)
}

type fakePublisher struct {
	requests []github.Request
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, req github.Request) (*github.PullRequest, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &github.PullRequest{Number: 12, HTMLURL: "https://example.com/pull/12"}, nil
}

func TestExportCommitsLocally(t *testing.T) {
	fx := newFixture(t)
	var out bytes.Buffer

	result, err := Export(context.Background(), newTestService(), fx.cfg, Options{
		TempDir: fx.base,
		RunID:   "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		Stdout:  &out,
		Now:     fixedNow,
	})
	require.NoError(t, err)

	assert.True(t, result.Committed)
	assert.Nil(t, result.PullRequest)
	assert.Equal(t, []string{"/f.js"}, result.Buckets.Strings()[models.OutcomeExportAndOverwrite])
	assert.Equal(t, []string{"/g.js"}, result.Buckets.Strings()[models.OutcomeExportFile])
	assert.Contains(t, out.String(), "EXPORT_FILE")

	ws := result.Workspace
	got, err := os.ReadFile(filepath.Join(ws.TargetDirectory, "f.js"))
	require.NoError(t, err)
	assert.Equal(t, "// updated upstream\n", string(got))
	got, err = os.ReadFile(filepath.Join(ws.TargetDirectory, "g.js"))
	require.NoError(t, err)
	assert.Equal(t, "// brand new test\n", string(got))
	assert.NoFileExists(t, filepath.Join(ws.TargetDirectory, "resources", "helper.js"))

	subject := runGit(t, ws.TargetRoot, "log", "-1", "--format=%s|%an")
	assert.True(t, strings.HasPrefix(subject, "[jsc-test262-automation] Changes from "), subject)
	assert.True(t, strings.HasSuffix(subject, "|test262-automation"), subject)
	assert.Equal(t, ws.Branch, runGit(t, ws.TargetRoot, "rev-parse", "--abbrev-ref", "HEAD"))

	var logDoc models.CurationLog
	data, err := os.ReadFile(ws.CurationLogPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &logDoc))
	assert.Equal(t, runGit(t, fx.source, "rev-parse", "HEAD"), logDoc.SourceRevisionAtLastExport)

	// unpublished commits stay around for inspection
	assert.DirExists(t, ws.TempDir)
}

func TestExportPublishesPullRequest(t *testing.T) {
	fx := newFixture(t)
	bare := filepath.Join(fx.base, "fork.git")
	runGit(t, fx.base, "init", "-q", "--bare", bare)

	fx.cfg.PushRemote = bare
	fx.cfg.GitHub.Org = "tc39"
	fx.cfg.PullRequestLabels = []string{"export"}
	pub := &fakePublisher{}

	result, err := Export(context.Background(), newTestService(), fx.cfg, Options{
		PullRequest: true,
		TempDir:     fx.base,
		Stdout:      &bytes.Buffer{},
		Publisher:   pub,
		Now:         fixedNow,
	})
	require.NoError(t, err)
	require.NotNil(t, result.PullRequest)
	assert.Equal(t, 12, result.PullRequest.Number)

	require.Len(t, pub.requests, 1)
	req := pub.requests[0]
	assert.Equal(t, result.Workspace.Branch, req.Branch)
	assert.Equal(t, "Import JavaScript Test Changes from jsc", req.Title)
	assert.Equal(t, []string{"export"}, req.Labels)
	assert.Contains(t, req.Body, result.RunID)

	runGit(t, bare, "rev-parse", "--verify", "refs/heads/"+result.Workspace.Branch)
	assert.NoDirExists(t, result.Workspace.TempDir)
}

func TestExportPublishFailureKeepsWorkspace(t *testing.T) {
	fx := newFixture(t)
	bare := filepath.Join(fx.base, "fork.git")
	runGit(t, fx.base, "init", "-q", "--bare", bare)
	fx.cfg.PushRemote = bare
	fx.cfg.GitHub.Org = "tc39"

	boom := errors.New("github down")
	result, err := Export(context.Background(), newTestService(), fx.cfg, Options{
		PullRequest: true,
		TempDir:     fx.base,
		Stdout:      &bytes.Buffer{},
		Publisher:   &fakePublisher{err: boom},
	})
	require.ErrorIs(t, err, boom)
	assert.DirExists(t, result.Workspace.TempDir)
}

func TestClassifyDoesNotMutate(t *testing.T) {
	fx := newFixture(t)
	fx.cfg.MetricsFile = filepath.Join(fx.base, "export.prom")
	var out bytes.Buffer

	result, err := Classify(context.Background(), newTestService(), fx.cfg, Options{
		TempDir: fx.base,
		Stdout:  &out,
		RunID:   "run-1",
	})
	require.NoError(t, err)
	assert.False(t, result.Committed)
	assert.Equal(t, 2, result.Buckets.Total())

	assert.Contains(t, out.String(), "# Import JavaScript Test Changes from jsc")
	assert.Contains(t, out.String(), "Export run `run-1`")
	assert.NoDirExists(t, result.Workspace.TempDir)

	metricsData, err := os.ReadFile(fx.cfg.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsData), `t262export_files{implementer="jsc",outcome="EXPORT_FILE"} 1`)
}

func TestExportNothingToDo(t *testing.T) {
	fx := newFixtureWithChanges(t, false)

	result, err := Export(context.Background(), newTestService(), fx.cfg, Options{
		TempDir: fx.base,
		Stdout:  &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.False(t, result.Committed)
	assert.True(t, result.Buckets.Empty())
	assert.NoDirExists(t, result.Workspace.TempDir)
}

func TestExportRejectsInvalidConfig(t *testing.T) {
	_, err := Export(context.Background(), nil, config.DefaultConfig(), Options{Stdout: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "implementer_name")

	cfg := config.DefaultConfig()
	cfg.ImplementerName = "jsc"
	cfg.TargetGit, cfg.TargetBranch, cfg.TargetSubDirectory = "t", "main", "a"
	cfg.SourceGit, cfg.SourceBranch, cfg.SourceSubDirectory = "s", "main", "b"
	_, err = Export(context.Background(), nil, cfg, Options{PullRequest: true, Stdout: &bytes.Buffer{}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "github.token")
}

func TestBranchName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ImplementerName = "jsc"

	assert.Equal(t, "jsc-test262-export-abc123", BranchName(cfg, "abc123", "1b4e28ba", false))
	assert.Equal(t, "jsc-test262-export-1b4e28ba", BranchName(cfg, "abc123", "1b4e28ba", true))
	assert.Equal(t, "1b4e28ba", shortID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"))
	assert.Equal(t, "run", shortID("run"))
}

func TestSourceExcludes(t *testing.T) {
	ws := &models.Workspace{SourceDirectory: "/tmp/w/source/JSTests/stress"}
	assert.Equal(t,
		[]string{"/tmp/w/source/JSTests/stress/resources", "/tmp/w/source/JSTests/stress/lib/x.js"},
		sourceExcludes(ws, []string{"resources", "lib/x.js"}))
}
