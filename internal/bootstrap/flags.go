// Package bootstrap wires the t262export command line.
package bootstrap

import (
	urfavecli "github.com/urfave/cli/v3"
)

// globalFlags returns the flags shared by every command.
// Note: --version is provided automatically by urfave/cli via Command.Version
func globalFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:    "config-file",
			Aliases: []string{"c"},
			Usage:   "Path to the implementation configuration (YAML or JSON)",
			Sources: urfavecli.EnvVars("T262_CONFIG_FILE"),
		},
		&urfavecli.StringSliceFlag{
			Name:    "config",
			Aliases: []string{"C"},
			Usage:   "Override config values (repeatable): --config=t262.key=value",
		},
		&urfavecli.StringFlag{
			Name:    "implementation",
			Aliases: []string{"i"},
			Usage:   "Implementer name, overrides implementer_name",
		},
		&urfavecli.StringFlag{
			Name:  "debug-log",
			Usage: "Path to debug log file",
		},
		&urfavecli.StringFlag{
			Name:  "log-level",
			Usage: "Minimum log level: debug, info, warn, error",
		},
		&urfavecli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Debug run: unique branch name, debug logging, keep the workspace",
		},
	}
}

// runFlags returns the flags of the commands that prepare a workspace.
func runFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:  "temp-dir",
			Usage: "Parent directory of the workspace (defaults to the system temp dir)",
		},
		&urfavecli.BoolFlag{
			Name:  "keep-workspace",
			Usage: "Do not remove the workspace when the run finishes",
		},
		&urfavecli.StringFlag{
			Name:  "run-id",
			Usage: "Identifier recorded in the pull request body (generated when empty)",
		},
	}
}

// exportFlags returns the flags specific to the export command.
func exportFlags() []urfavecli.Flag {
	return append(runFlags(),
		&urfavecli.BoolFlag{
			Name:    "pull-request",
			Aliases: []string{"p"},
			Usage:   "Push the export branch and open or update the pull request",
		},
	)
}
