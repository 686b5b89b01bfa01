// Package github opens and updates the export pull request through the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	log "github.com/chmouel/t262export/internal/log"
)

// DefaultAPIURL is the public GitHub API endpoint.
const DefaultAPIURL = "https://api.github.com"

const defaultMaxTries = 4

// ErrMissingToken is returned when no token is configured.
var ErrMissingToken = errors.New("no github token found, set GITHUB_TOKEN before opening a pull request")

// Config locates the repository pull requests are opened against.
type Config struct {
	APIURL     string
	Org        string
	Repo       string
	BaseBranch string
	Username   string // owner of the pushed branch
	Token      string
}

// APIError is a non-2xx GitHub answer.
type APIError struct {
	StatusCode int
	Message    string `json:"message"`
	Errors     []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (e *APIError) Error() string {
	msgs := []string{e.Message}
	for _, inner := range e.Errors {
		if inner.Message != "" {
			msgs = append(msgs, inner.Message)
		}
	}
	return fmt.Sprintf("github: %d: %s", e.StatusCode, strings.Join(msgs, ": "))
}

// HasMessage reports whether any error message of the response contains substr.
func (e *APIError) HasMessage(substr string) bool {
	if strings.Contains(e.Message, substr) {
		return true
	}
	for _, inner := range e.Errors {
		if strings.Contains(inner.Message, substr) {
			return true
		}
	}
	return false
}

// PullRequest is the subset of the pull request resource used here.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	Title   string `json:"title"`
}

// Client is a small authenticated GitHub REST client.
type Client struct {
	cfg      Config
	http     *http.Client
	newBack  func() backoff.BackOff
	maxTries uint
}

// NewClient returns a Client authenticating with cfg.Token.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrMissingToken
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimSuffix(cfg.APIURL, "/")

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return &Client{
		cfg:      cfg,
		http:     oauth2.NewClient(ctx, ts),
		newBack:  func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxTries: defaultMaxTries,
	}, nil
}

func (c *Client) repoPath() string {
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(c.cfg.Org), url.PathEscape(c.cfg.Repo))
}

func (c *Client) head(branch string) string {
	return c.cfg.Username + ":" + branch
}

// OpenPullRequest opens a pull request from branch against the base branch.
func (c *Client) OpenPullRequest(ctx context.Context, branch, title, body string) (*PullRequest, error) {
	payload := map[string]any{
		"title":                 title,
		"body":                  body,
		"head":                  c.head(branch),
		"base":                  c.cfg.BaseBranch,
		"maintainer_can_modify": true,
	}
	var pr PullRequest
	if err := c.do(ctx, http.MethodPost, c.repoPath()+"/pulls", payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// FindPullRequest returns the open pull request whose head is branch.
func (c *Client) FindPullRequest(ctx context.Context, branch string) (*PullRequest, error) {
	query := url.Values{"head": {c.head(branch)}, "state": {"open"}}
	var prs []PullRequest
	if err := c.do(ctx, http.MethodGet, c.repoPath()+"/pulls?"+query.Encode(), nil, &prs); err != nil {
		return nil, err
	}
	if len(prs) == 0 {
		return nil, fmt.Errorf("no open pull request for %s", c.head(branch))
	}
	return &prs[0], nil
}

// UpdatePullRequest replaces the title and body of the open pull request for branch.
func (c *Client) UpdatePullRequest(ctx context.Context, branch, title, body string) (*PullRequest, error) {
	existing, err := c.FindPullRequest(ctx, branch)
	if err != nil {
		return nil, err
	}
	var pr PullRequest
	path := fmt.Sprintf("%s/pulls/%d", c.repoPath(), existing.Number)
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"title": title, "body": body}, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// AddLabels adds labels to issue or pull request number.
func (c *Client) AddLabels(ctx context.Context, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	path := fmt.Sprintf("%s/issues/%d/labels", c.repoPath(), number)
	return c.do(ctx, http.MethodPost, path, map[string][]string{"labels": labels}, nil)
}

// do sends one request, retrying transport failures and 5xx answers.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			log.Debugf("github %s %s: %v", method, path, err)
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 300 {
			return data, nil
		}

		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode >= 500 {
			return nil, apiErr
		}
		return nil, backoff.Permanent(apiErr)
	}

	data, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBack()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
