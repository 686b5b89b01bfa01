package bootstrap

import (
	"fmt"
	"os"

	"github.com/chmouel/t262export/internal/config"
	"github.com/chmouel/t262export/internal/git"
	log "github.com/chmouel/t262export/internal/log"
)

// loadCLIConfig loads the configuration file, the environment and the CLI overrides, in
// increasing precedence.
func loadCLIConfig(configFileFlag, implementationFlag string, configOverrides []string) (*config.ExportConfig, error) {
	cfg, err := config.LoadConfig(configFileFlag)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	if implementationFlag != "" {
		cfg.ImplementerName = implementationFlag
	}

	if len(configOverrides) > 0 {
		if err := cfg.ApplyCLIOverrides(configOverrides); err != nil {
			return nil, fmt.Errorf("error applying config overrides: %w", err)
		}
	}

	return cfg, nil
}

// setupLogging directs the debug log to the flag path, or the configured one, and sets the level.
// Without a path, buffered logs are discarded.
func setupLogging(cfg *config.ExportConfig, debugLogFlag, levelFlag string, debug bool) error {
	path := debugLogFlag
	if path == "" {
		path = cfg.DebugLog
	}
	if path != "" {
		if expanded, err := config.ExpandPath(path); err == nil {
			path = expanded
		}
		cfg.DebugLog = path
	}
	if err := log.SetFile(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening debug log file %q: %v\n", path, err)
	}

	level := cfg.LogLevel
	switch {
	case levelFlag != "":
		level = levelFlag
	case debug:
		level = "debug"
	}
	if err := log.SetLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.LogLevel = level
	return nil
}

// newCLIGitService creates a git service that commits as the automation account.
func newCLIGitService(cfg *config.ExportConfig) *git.Service {
	gitSvc := git.NewService(cliNotify, cliNotifyOnce)
	gitSvc.SetAuthor(git.Author{Name: cfg.GitHub.Username, Email: cfg.GitHub.AuthorEmail})
	return gitSvc
}

// cliNotify is a notification callback for git operations in CLI mode.
func cliNotify(message, severity string) {
	if severity == "error" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", message)
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n", message)
}

// cliNotifyOnce is a notification callback for git operations that should only fire once.
func cliNotifyOnce(_, message, severity string) {
	cliNotify(message, severity)
}
