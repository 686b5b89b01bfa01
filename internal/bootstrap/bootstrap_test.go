package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmouel/t262export/internal/cli"
	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/git"
	log "github.com/chmouel/t262export/internal/log"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"T262_GH_ORG", "T262_GH_REPO_NAME", "T262_BASE_BRANCH", "GITHUB_USERNAME", "GITHUB_TOKEN", "T262_CONFIG_FILE"} {
		t.Setenv(name, "")
	}
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stderr
	reader, writer, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = writer

	fn()

	_ = writer.Close()
	os.Stderr = orig

	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	return string(out)
}

func TestLoadCLIConfig(t *testing.T) {
	clearEnv(t)

	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadCLIConfig("", "", nil)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultBranchNameForMerge, cfg.NewBranchNameForMerge)
	})

	t.Run("implementation flag and overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "jsc.yaml")
		require.NoError(t, os.WriteFile(path, []byte("implementer_name: v8\nclone_depth: 20\n"), 0o600))

		cfg, err := loadCLIConfig(path, "jsc", []string{"t262.clone_depth=5"})
		require.NoError(t, err)
		assert.Equal(t, "jsc", cfg.ImplementerName)
		assert.Equal(t, 5, cfg.CloneDepth)
	})

	t.Run("invalid override", func(t *testing.T) {
		_, err := loadCLIConfig("", "", []string{"clone_depth=5"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error applying config overrides")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadCLIConfig(filepath.Join(t.TempDir(), "missing.yaml"), "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error loading config")
	})
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		_ = log.SetFile("")
		_ = log.SetLevel("info")
	})

	path := filepath.Join(t.TempDir(), "debug.log")
	cfg := config.DefaultConfig()
	require.NoError(t, setupLogging(cfg, path, "", true))
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, path, cfg.DebugLog)

	log.Debugf("hello from the test")
	require.NoError(t, log.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the test")

	cfg = config.DefaultConfig()
	require.NoError(t, setupLogging(cfg, "", "warn", true))
	assert.Equal(t, "warn", cfg.LogLevel)

	assert.Error(t, setupLogging(config.DefaultConfig(), "", "chatty", false))
}

func TestNewCLIGitService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GitHub.Username = "test262-automation"
	cfg.GitHub.AuthorEmail = "automation@example.com"
	assert.NotNil(t, newCLIGitService(cfg))
}

func TestCLINotify(t *testing.T) {
	out := captureStderr(t, func() {
		cliNotify("clone failed", "error")
		cliNotifyOnce("key", "cloning", "info")
	})
	assert.Equal(t, "Error: clone failed\ncloning\n", out)
}

type recordedRun struct {
	name string
	cfg  *config.ExportConfig
	opts cli.Options
}

func stubRuns(t *testing.T, err error) *[]recordedRun {
	t.Helper()
	var runs []recordedRun
	oldExport, oldClassify := exportFunc, classifyFunc
	t.Cleanup(func() { exportFunc, classifyFunc = oldExport, oldClassify })

	record := func(name string) runFuncType {
		return func(_ context.Context, _ *git.Service, cfg *config.ExportConfig, opts cli.Options) (*cli.Result, error) {
			runs = append(runs, recordedRun{name: name, cfg: cfg, opts: opts})
			return &cli.Result{}, err
		}
	}
	exportFunc = record("export")
	classifyFunc = record("classify")
	return &runs
}

func TestExportCommand(t *testing.T) {
	clearEnv(t)
	runs := stubRuns(t, nil)

	app := NewApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{
		"t262export", "-i", "jsc", "-C", "t262.source_branch=main",
		"export", "--pull-request", "--run-id", "r1", "--temp-dir", "/srv/tmp", "--keep-workspace",
	})
	require.NoError(t, err)

	require.Len(t, *runs, 1)
	run := (*runs)[0]
	assert.Equal(t, "export", run.name)
	assert.Equal(t, "jsc", run.cfg.ImplementerName)
	assert.Equal(t, "main", run.cfg.SourceBranch)
	assert.True(t, run.opts.PullRequest)
	assert.True(t, run.opts.KeepWorkspace)
	assert.False(t, run.opts.Debug)
	assert.Equal(t, "r1", run.opts.RunID)
	assert.Equal(t, "/srv/tmp", run.opts.TempDir)
	assert.Same(t, app.Writer, run.opts.Stdout)
}

func TestClassifyCommand(t *testing.T) {
	clearEnv(t)
	runs := stubRuns(t, nil)

	for _, name := range []string{"classify", "dry-run"} {
		app := NewApp()
		app.Writer = &bytes.Buffer{}
		require.NoError(t, app.Run(context.Background(), []string{"t262export", "--debug", name}))
	}

	require.Len(t, *runs, 2)
	for _, run := range *runs {
		assert.Equal(t, "classify", run.name)
		assert.False(t, run.opts.PullRequest)
		assert.True(t, run.opts.Debug)
	}
}

func TestCommandErrorsPropagate(t *testing.T) {
	clearEnv(t)
	boom := errors.New("clone failed")
	stubRuns(t, boom)

	app := NewApp()
	app.Writer = &bytes.Buffer{}
	err := app.Run(context.Background(), []string{"t262export", "export"})
	assert.ErrorIs(t, err, boom)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	require.NoError(t, app.Run(context.Background(), []string{"t262export", "version"}))
	assert.Contains(t, out.String(), "t262export dev")
	assert.Contains(t, out.String(), "commit:")
}
