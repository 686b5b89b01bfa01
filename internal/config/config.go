// Package config loads the t262export configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied before the configuration file is read.
const (
	DefaultCurationLogPath    = "implementation-contributed/curation_logs.json"
	DefaultBranchNameForMerge = "test262-export"
	DefaultBaseBranch         = "master"
	DefaultAPIURL             = "https://api.github.com"
	DefaultCloneDepth         = 1000
	DefaultLogLevel           = "info"
)

// GitHubConfig locates the repository the export pull request is opened against.
type GitHubConfig struct {
	Org         string
	RepoName    string
	BaseBranch  string
	Username    string // pushes the export branch and authors the commit
	AuthorEmail string
	Token       string
	APIURL      string
}

// ExportConfig is the typed configuration of one export.
type ExportConfig struct {
	ImplementerName       string
	CurationLogPath       string // relative to the target root
	NewBranchNameForMerge string

	TargetGit          string
	TargetBranch       string
	TargetSubDirectory string
	SourceGit          string
	SourceBranch       string
	SourceSubDirectory string
	SourceExcludes     []string // relative to the source sub directory
	IgnoredMaintainers []string
	CloneDepth         int

	PushRemote        string // remote the export branch is pushed to
	PullRequestTitle  string // empty means the report heading
	PullRequestLabels []string

	DebugLog    string
	LogLevel    string
	MetricsFile string

	GitHub GitHubConfig
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *ExportConfig {
	return &ExportConfig{
		CurationLogPath:       DefaultCurationLogPath,
		NewBranchNameForMerge: DefaultBranchNameForMerge,
		SourceExcludes:        []string{},
		IgnoredMaintainers:    []string{},
		CloneDepth:            DefaultCloneDepth,
		PullRequestLabels:     []string{},
		LogLevel:              DefaultLogLevel,
		GitHub: GitHubConfig{
			BaseBranch: DefaultBaseBranch,
			APIURL:     DefaultAPIURL,
		},
	}
}

// normalizeList converts a scalar or a YAML sequence to a list of trimmed strings.
func normalizeList(value any) []string {
	if value == nil {
		return []string{}
	}

	switch v := value.(type) {
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return []string{}
		}
		return []string{text}
	case []any:
		items := []string{}
		for _, item := range v {
			if item == nil {
				continue
			}
			text := strings.TrimSpace(fmt.Sprintf("%v", item))
			if text != "" {
				items = append(items, text)
			}
		}
		return items
	case []string:
		return normalizeList(toAnySlice(v))
	}
	return []string{}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func coerceInt(value any, defaultVal int) int {
	if value == nil {
		return defaultVal
	}

	switch v := value.(type) {
	case bool:
		return defaultVal
	case int:
		return v
	case float64:
		return int(v)
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return defaultVal
		}
		if i, err := strconv.Atoi(text); err == nil {
			return i
		}
	}
	return defaultVal
}

func coerceString(value any, defaultVal string) string {
	if value == nil {
		return defaultVal
	}
	text := strings.TrimSpace(fmt.Sprintf("%v", value))
	if text == "" {
		return defaultVal
	}
	return text
}

// parseConfig applies the keys present in data over cfg.
func parseConfig(cfg *ExportConfig, data map[string]any) {
	strs := map[string]*string{
		"implementer_name":          &cfg.ImplementerName,
		"curation_log_path":         &cfg.CurationLogPath,
		"new_branch_name_for_merge": &cfg.NewBranchNameForMerge,
		"target_git":                &cfg.TargetGit,
		"target_branch":             &cfg.TargetBranch,
		"target_sub_directory":      &cfg.TargetSubDirectory,
		"source_git":                &cfg.SourceGit,
		"source_branch":             &cfg.SourceBranch,
		"source_sub_directory":      &cfg.SourceSubDirectory,
		"push_remote":               &cfg.PushRemote,
		"pull_request_title":        &cfg.PullRequestTitle,
		"debug_log":                 &cfg.DebugLog,
		"log_level":                 &cfg.LogLevel,
		"metrics_file":              &cfg.MetricsFile,
		"github.org":                &cfg.GitHub.Org,
		"github.repo_name":          &cfg.GitHub.RepoName,
		"github.base_branch":        &cfg.GitHub.BaseBranch,
		"github.username":           &cfg.GitHub.Username,
		"github.author_email":       &cfg.GitHub.AuthorEmail,
		"github.token":              &cfg.GitHub.Token,
		"github.api_url":            &cfg.GitHub.APIURL,
	}
	lists := map[string]*[]string{
		"source_excludes":     &cfg.SourceExcludes,
		"ignored_maintainers": &cfg.IgnoredMaintainers,
		"pull_request_labels": &cfg.PullRequestLabels,
	}

	for key, value := range flatten(data) {
		if dst, ok := strs[key]; ok {
			*dst = coerceString(value, *dst)
			continue
		}
		if dst, ok := lists[key]; ok {
			*dst = normalizeList(value)
			continue
		}
		if key == "clone_depth" {
			cfg.CloneDepth = coerceInt(value, cfg.CloneDepth)
		}
	}

	cfg.SourceExcludes = cleanExcludes(cfg.SourceExcludes)
}

// flatten joins nested mapping keys with dots: {"github": {"org": x}} becomes {"github.org": x}.
func flatten(data map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range data {
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(nested) {
				out[key+"."+k] = v
			}
			continue
		}
		out[key] = value
	}
	return out
}

// cleanExcludes strips leading "./" and "/" so excludes can be anchored under the source directory.
func cleanExcludes(excludes []string) []string {
	out := make([]string, 0, len(excludes))
	for _, e := range excludes {
		e = strings.TrimPrefix(e, "./")
		e = strings.TrimLeft(e, "/")
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

// LoadConfig reads the configuration from a YAML (or JSON) file over the defaults, then applies
// the environment. An empty path only applies the environment.
func LoadConfig(configPath string) (*ExportConfig, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return cfg, err
		}
		// #nosec G304 -- the path is chosen by the operator
		data, err := os.ReadFile(expanded)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", expanded, err)
		}
		var yamlData map[string]any
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", expanded, err)
		}
		parseConfig(cfg, yamlData)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// envOverrides maps environment variables to configuration keys.
var envOverrides = []struct {
	name string
	key  string
}{
	{"T262_GH_ORG", "github.org"},
	{"T262_GH_REPO_NAME", "github.repo_name"},
	{"T262_BASE_BRANCH", "github.base_branch"},
	{"GITHUB_USERNAME", "github.username"},
	{"GITHUB_TOKEN", "github.token"},
}

// ApplyEnv loads a .env file from the working directory when present and applies the
// GitHub environment variables.
func (c *ExportConfig) ApplyEnv() {
	_ = godotenv.Load()

	data := map[string]any{}
	for _, env := range envOverrides {
		if value := os.Getenv(env.name); value != "" {
			data[env.key] = value
		}
	}
	parseConfig(c, data)
}

// parseCLIConfigOverrides parses --config=t262.key=value format.
// Returns a map suitable for parseConfig().
func parseCLIConfigOverrides(overrides []string) (map[string]any, error) {
	result := make(map[string]any)
	keyCount := make(map[string]int)

	for _, override := range overrides {
		parts := strings.SplitN(override, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config override: %q, expected format: t262.key=value (note: use = not space)", override)
		}

		fullKey := parts[0]
		value := parts[1]

		if !strings.HasPrefix(fullKey, "t262.") {
			return nil, fmt.Errorf("config override key must start with 't262.': %q", fullKey)
		}

		key := strings.TrimPrefix(fullKey, "t262.")
		if key == "" {
			return nil, fmt.Errorf("empty config key in override: %q", override)
		}

		// repeated keys build a list
		keyCount[key]++
		switch keyCount[key] {
		case 1:
			result[key] = value
		case 2:
			result[key] = []any{result[key].(string), value}
		default:
			result[key] = append(result[key].([]any), value)
		}
	}

	return result, nil
}

// ApplyCLIOverrides applies t262.key=value overrides, the highest precedence source.
func (c *ExportConfig) ApplyCLIOverrides(overrides []string) error {
	data, err := parseCLIConfigOverrides(overrides)
	if err != nil {
		return err
	}
	parseConfig(c, data)
	return nil
}

// Validate reports every missing required key in one error.
func (c *ExportConfig) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"implementer_name", c.ImplementerName},
		{"target_git", c.TargetGit},
		{"target_branch", c.TargetBranch},
		{"target_sub_directory", c.TargetSubDirectory},
		{"source_git", c.SourceGit},
		{"source_branch", c.SourceBranch},
		{"source_sub_directory", c.SourceSubDirectory},
		{"curation_log_path", c.CurationLogPath},
	}

	var errs []error
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("missing required config key %q", r.key))
		}
	}
	if c.CloneDepth < 0 {
		errs = append(errs, fmt.Errorf("clone_depth must not be negative, got %d", c.CloneDepth))
	}
	for _, sub := range []string{c.TargetSubDirectory, c.SourceSubDirectory, c.CurationLogPath} {
		if sub != "" && !isPathWithin(".", sub) {
			errs = append(errs, fmt.Errorf("path %q must stay inside its repository", sub))
		}
	}
	return errors.Join(errs...)
}

// ValidateGitHub reports missing settings needed to push the branch and open the pull request.
func (c *ExportConfig) ValidateGitHub() error {
	required := []struct {
		key   string
		value string
	}{
		{"github.org", c.GitHub.Org},
		{"github.repo_name", c.GitHub.RepoName},
		{"github.username", c.GitHub.Username},
		{"github.token", c.GitHub.Token},
		{"push_remote", c.PushRemote},
	}

	var errs []error
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("missing required config key %q", r.key))
		}
	}
	return errors.Join(errs...)
}

// ExpandPath expands a leading ~ and environment variables.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}

// isPathWithin reports whether target, relative to base, stays inside base.
func isPathWithin(base, target string) bool {
	if filepath.IsAbs(target) {
		return false
	}
	base = filepath.Clean(base)
	target = filepath.Clean(filepath.Join(base, target))

	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return false
	}
	return true
}
