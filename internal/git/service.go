// Package git wraps the git commands used by t262export.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	log "github.com/chmouel/t262export/internal/log"
)

// LookupPath is used to find executables in PATH. It's exposed as a package variable
// so tests can mock it and avoid depending on system binaries being installed.
var LookupPath = exec.LookPath

// NotifyFn receives ongoing notifications.
type NotifyFn func(message string, severity string)

// NotifyOnceFn reports deduplicated notification messages.
type NotifyOnceFn func(key string, message string, severity string)

// CommandError is returned when a git command exits with a disallowed code.
type CommandError struct {
	Command  string
	Dir      string
	ExitCode int
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s (cwd=%s): exit %d: %s", e.Command, e.Dir, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s (cwd=%s): exit %d", e.Command, e.Dir, e.ExitCode)
}

// Author identifies the automation in commits it creates.
type Author struct {
	Name  string
	Email string
}

// Service runs repository operations through git subprocesses.
type Service struct {
	notify     NotifyFn
	notifyOnce NotifyOnceFn
	semaphore  chan struct{}
	author     Author
}

// NewService constructs a Service and sets up concurrency limits.
func NewService(notify NotifyFn, notifyOnce NotifyOnceFn) *Service {
	limit := runtime.NumCPU() * 2
	if limit < 4 {
		limit = 4
	}
	if limit > 32 {
		limit = 32
	}

	// Channel starts full with 'limit' tokens. This limits concurrent git operations.
	semaphore := make(chan struct{}, limit)
	for i := 0; i < limit; i++ {
		semaphore <- struct{}{}
	}

	if notify == nil {
		notify = func(string, string) {}
	}
	if notifyOnce == nil {
		notifyOnce = func(_, message, severity string) { notify(message, severity) }
	}

	return &Service{
		notify:     notify,
		notifyOnce: notifyOnce,
		semaphore:  semaphore,
	}
}

// SetAuthor sets the identity used by Commit.
func (s *Service) SetAuthor(author Author) {
	s.author = author
}

func (s *Service) debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

func prepareAllowedCommand(ctx context.Context, args []string) (*exec.Cmd, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no command provided")
	}

	switch args[0] {
	case "git":
		// #nosec G204 -- arguments for git command come from internal logic and are not shell interpolated
		return exec.CommandContext(ctx, "git", args[1:]...), nil
	default:
		return nil, fmt.Errorf("unsupported command %q", args[0])
	}
}

func (s *Service) acquireSemaphore() {
	<-s.semaphore
}

func (s *Service) releaseSemaphore() {
	s.semaphore <- struct{}{}
}

// Output runs a git command and returns its stdout. Exit codes outside okReturncodes become a *CommandError.
func (s *Service) Output(ctx context.Context, args []string, cwd string, okReturncodes []int) (string, error) {
	return s.output(ctx, args, cwd, nil, okReturncodes)
}

func (s *Service) output(ctx context.Context, args []string, cwd string, env []string, okReturncodes []int) (string, error) {
	command := strings.Join(args, " ")
	if command == "" {
		command = "<empty>"
	}
	s.debugf("run: %s (cwd=%s)", command, cwd)

	cmd, err := prepareAllowedCommand(ctx, args)
	if err != nil {
		return "", err
	}
	if cwd != "" {
		cmd.Dir = cwd
	}
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	s.acquireSemaphore()
	defer s.releaseSemaphore()

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return "", fmt.Errorf("%s: %w", command, err)
		}
		returnCode := exitError.ExitCode()
		if !slices.Contains(okReturncodes, returnCode) {
			cmdErr := &CommandError{
				Command:  command,
				Dir:      cwd,
				ExitCode: returnCode,
				Stderr:   strings.TrimSpace(string(exitError.Stderr)),
			}
			s.debugf("error: %v", cmdErr)
			return "", cmdErr
		}
	}

	s.debugf("ok: %s", command)
	return string(output), nil
}

// RunGit executes a git command and optionally trims its output.
// Failures are reported through the notify callbacks and yield an empty string.
func (s *Service) RunGit(ctx context.Context, args []string, cwd string, okReturncodes []int, strip, silent bool) string {
	out, err := s.Output(ctx, args, cwd, okReturncodes)
	if err != nil {
		if !silent {
			key := fmt.Sprintf("git_fail:%s:%s", cwd, strings.Join(args, " "))
			s.notifyOnce(key, fmt.Sprintf("Command failed: %v", err), "error")
		}
		return ""
	}
	if strip {
		out = strings.TrimSpace(out)
	}
	return out
}

// Version returns the output of `git --version`, or an empty string when git cannot run.
func (s *Service) Version(ctx context.Context) string {
	return strings.TrimPrefix(s.RunGit(ctx, []string{"git", "--version"}, "", []int{0}, true, true), "git version ")
}

// Clone clones branch of remote into parentDir/dirName and returns the clone path.
func (s *Service) Clone(ctx context.Context, remote, branch, parentDir, dirName string, depth int) (string, error) {
	args := []string{"git", "clone", "--single-branch", "--branch=" + branch}
	if depth > 0 {
		args = append(args, "--depth="+strconv.Itoa(depth))
	}
	args = append(args, remote, dirName)

	s.notify(fmt.Sprintf("Starting clone of %s...", remote), "info")
	if _, err := s.Output(ctx, args, parentDir, []int{0}); err != nil {
		return "", fmt.Errorf("clone %s: %w", remote, err)
	}
	s.notify(fmt.Sprintf("Completed clone of %s", remote), "info")
	return filepath.Join(parentDir, dirName), nil
}

// CheckoutNewBranch creates and switches to branch in dir.
func (s *Service) CheckoutNewBranch(ctx context.Context, dir, branch string) error {
	if _, err := s.Output(ctx, []string{"git", "checkout", "-b", branch}, dir, []int{0}); err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

// Diff returns `git diff --name-status from to` for the repository in dir.
func (s *Service) Diff(ctx context.Context, dir, from, to string) (string, error) {
	out, err := s.Output(ctx, []string{"git", "diff", "--name-status", from, to}, dir, []int{0})
	if err != nil {
		return "", fmt.Errorf("diff %s..%s: %w", from, to, err)
	}
	return out, nil
}

// DiffNoIndex compares two directories outside of any repository index.
// Rename detection is off: a file only in a is reported as D and a file only in b as A,
// never paired into one record. git exits 1 when differences exist, which is not a failure here.
func (s *Service) DiffNoIndex(ctx context.Context, dir, a, b string) (string, error) {
	args := []string{"git", "diff", "--no-index", "--no-renames", "--name-status", a, b}
	out, err := s.Output(ctx, args, dir, []int{0, 1})
	if err != nil {
		return "", fmt.Errorf("diff --no-index %s %s: %w", a, b, err)
	}
	return out, nil
}

// Log returns the raw output of `git log` with the given options.
func (s *Service) Log(ctx context.Context, dir string, options ...string) (string, error) {
	args := append([]string{"git", "log"}, options...)
	out, err := s.Output(ctx, args, dir, []int{0})
	if err != nil {
		return "", fmt.Errorf("log: %w", err)
	}
	return out, nil
}

// AuthorsSince lists the author names of every commit touching filename between since and HEAD.
// filename is relative to dir; duplicates are preserved in log order.
func (s *Service) AuthorsSince(ctx context.Context, dir, since, filename string) ([]string, error) {
	pathspec := "." + filename
	if !strings.HasPrefix(filename, "/") {
		pathspec = "./" + filename
	}
	out, err := s.Log(ctx, dir, "--format=%an", since+"..HEAD", "--", pathspec)
	if err != nil {
		return nil, err
	}

	var authors []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			authors = append(authors, line)
		}
	}
	return authors, nil
}

// LastRevision returns the newest commit sha of branch.
func (s *Service) LastRevision(ctx context.Context, dir, branch string) (string, error) {
	out, err := s.Output(ctx, []string{"git", "rev-list", branch, "--max-count=1"}, dir, []int{0})
	if err != nil {
		return "", fmt.Errorf("rev-list %s: %w", branch, err)
	}
	sha := strings.TrimSpace(out)
	if sha == "" {
		return "", fmt.Errorf("rev-list %s: no commits", branch)
	}
	return sha, nil
}

// AddPaths stages paths in dir.
func (s *Service) AddPaths(ctx context.Context, dir string, paths ...string) error {
	args := append([]string{"git", "add", "--all", "--"}, paths...)
	if _, err := s.Output(ctx, args, dir, []int{0}); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// HasStagedChanges reports whether the index of dir differs from HEAD.
func (s *Service) HasStagedChanges(ctx context.Context, dir string) (bool, error) {
	_, err := s.Output(ctx, []string{"git", "diff", "--cached", "--quiet"}, dir, []int{0})
	if err == nil {
		return false, nil
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode == 1 {
		return true, nil
	}
	return false, fmt.Errorf("diff --cached: %w", err)
}

// Commit records the staged changes in dir using the configured author as author and committer.
func (s *Service) Commit(ctx context.Context, dir, message string) error {
	args := []string{"git", "commit", "-m", message}
	var env []string
	if s.author.Name != "" && s.author.Email != "" {
		args = append(args, fmt.Sprintf("--author=%s <%s>", s.author.Name, s.author.Email))
		env = []string{
			"GIT_COMMITTER_NAME=" + s.author.Name,
			"GIT_COMMITTER_EMAIL=" + s.author.Email,
		}
	}
	if _, err := s.output(ctx, args, dir, env, []int{0}); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.notify(fmt.Sprintf("Committed changes with message %q", message), "info")
	return nil
}

// AddRemote registers a remote in dir.
func (s *Service) AddRemote(ctx context.Context, dir, name, url string) error {
	if _, err := s.Output(ctx, []string{"git", "remote", "add", name, url}, dir, []int{0}); err != nil {
		return fmt.Errorf("remote add %s: %w", name, err)
	}
	return nil
}

// Push pushes branch to remote.
func (s *Service) Push(ctx context.Context, dir, remote, branch string) error {
	if _, err := s.Output(ctx, []string{"git", "push", remote, branch}, dir, []int{0}); err != nil {
		return fmt.Errorf("push %s %s: %w", remote, branch, err)
	}
	s.notify(fmt.Sprintf("Pushed to remote branch %s", branch), "info")
	return nil
}
