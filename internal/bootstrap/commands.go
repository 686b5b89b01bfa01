package bootstrap

import (
	"context"
	"fmt"
	"io"

	urfavecli "github.com/urfave/cli/v3"

	"github.com/chmouel/t262export/internal/buildinfo"
	"github.com/chmouel/t262export/internal/cli"
	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/git"
	log "github.com/chmouel/t262export/internal/log"
)

type runFuncType func(ctx context.Context, gitSvc *git.Service, cfg *config.ExportConfig, opts cli.Options) (*cli.Result, error)

var (
	loadCLIConfigFunc                = loadCLIConfig
	newCLIGitServiceFunc             = newCLIGitService
	exportFunc           runFuncType = func(ctx context.Context, gitSvc *git.Service, cfg *config.ExportConfig, opts cli.Options) (*cli.Result, error) {
		return cli.Export(ctx, gitSvc, cfg, opts)
	}
	classifyFunc runFuncType = func(ctx context.Context, gitSvc *git.Service, cfg *config.ExportConfig, opts cli.Options) (*cli.Result, error) {
		return cli.Classify(ctx, gitSvc, cfg, opts)
	}
)

// NewApp returns the root t262export command.
func NewApp() *urfavecli.Command {
	return &urfavecli.Command{
		Name:    "t262export",
		Usage:   "Export implementation-contributed tests into test262",
		Version: buildinfo.Version(),
		Flags:   globalFlags(),

		EnableShellCompletion: true,

		Commands: []*urfavecli.Command{
			exportCommand(),
			classifyCommand(),
			versionCommand(),
		},
	}
}

// Run parses args and runs the selected command.
func Run(ctx context.Context, args []string) error {
	defer func() { _ = log.Close() }()
	return NewApp().Run(ctx, args)
}

func exportCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "export",
		Usage: "Classify the changes, update the target clone and commit them",
		Flags: exportFlags(),
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			return runAction(ctx, cmd, exportFunc, cmd.Bool("pull-request"))
		},
	}
}

func classifyCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:    "classify",
		Aliases: []string{"dry-run"},
		Usage:   "Print the outcome summary and pull request body without changing anything",
		Flags:   runFlags(),
		Action: func(ctx context.Context, cmd *urfavecli.Command) error {
			return runAction(ctx, cmd, classifyFunc, false)
		},
	}
}

func versionCommand() *urfavecli.Command {
	return &urfavecli.Command{
		Name:  "version",
		Usage: "Print build information",
		Action: func(_ context.Context, cmd *urfavecli.Command) error {
			printVersion(writer(cmd))
			return nil
		},
	}
}

// runAction builds the configuration, the logger and the git service, then runs fn.
func runAction(ctx context.Context, cmd *urfavecli.Command, fn runFuncType, pullRequest bool) error {
	cfg, err := loadCLIConfigFunc(cmd.String("config-file"), cmd.String("implementation"), cmd.StringSlice("config"))
	if err != nil {
		return err
	}

	debug := cmd.Bool("debug")
	if err := setupLogging(cfg, cmd.String("debug-log"), cmd.String("log-level"), debug); err != nil {
		return err
	}
	gitSvc := newCLIGitServiceFunc(cfg)
	log.With("implementer", cfg.ImplementerName, "version", buildinfo.Version(), "git", gitSvc.Version(ctx)).Infof("starting %s", cmd.Name)

	opts := cli.Options{
		PullRequest:   pullRequest,
		Debug:         debug,
		KeepWorkspace: cmd.Bool("keep-workspace"),
		TempDir:       cmd.String("temp-dir"),
		RunID:         cmd.String("run-id"),
		Stdout:        writer(cmd),
	}
	_, err = fn(ctx, gitSvc, cfg, opts)
	return err
}

func writer(cmd *urfavecli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return io.Discard
}

func printVersion(w io.Writer) {
	_, _ = fmt.Fprintln(w, buildinfo.Get())
}
