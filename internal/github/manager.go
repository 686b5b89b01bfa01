package github

import (
	"context"
	"errors"
	"fmt"
)

const alreadyExists = "A pull request already exists"

// PullRequests is the API surface the manager needs.
type PullRequests interface {
	OpenPullRequest(ctx context.Context, branch, title, body string) (*PullRequest, error)
	UpdatePullRequest(ctx context.Context, branch, title, body string) (*PullRequest, error)
	AddLabels(ctx context.Context, number int, labels []string) error
}

var _ PullRequests = (*Client)(nil)

// Request describes the pull request to publish.
type Request struct {
	Branch string
	Title  string
	Body   string
	Labels []string
}

// Manager opens the export pull request, or updates it when one is already open for the branch.
type Manager struct {
	api PullRequests
}

// NewManager returns a Manager using api.
func NewManager(api PullRequests) *Manager {
	return &Manager{api: api}
}

// Publish opens or updates the pull request and applies its labels.
func (m *Manager) Publish(ctx context.Context, req Request) (*PullRequest, error) {
	pr, err := m.api.OpenPullRequest(ctx, req.Branch, req.Title, req.Body)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.HasMessage(alreadyExists) {
			return nil, fmt.Errorf("open pull request: %w", err)
		}
		if pr, err = m.api.UpdatePullRequest(ctx, req.Branch, req.Title, req.Body); err != nil {
			return nil, fmt.Errorf("update pull request: %w", err)
		}
	}

	if err := m.api.AddLabels(ctx, pr.Number, req.Labels); err != nil {
		return pr, fmt.Errorf("label pull request #%d: %w", pr.Number, err)
	}
	return pr, nil
}
