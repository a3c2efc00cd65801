package gh

import (
	"context"
	"errors"
)

// PullRequest represents a newly created cherry-pick pull request.
type PullRequest struct {
	URL    string
	Number int
	Head   string
	Base   string
}

// Client exposes the GitHub operations required by the backport orchestrator.
type Client interface {
	CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error)
	// AddLabels is a no-op when labels is empty.
	AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error
	// AddAssignees is a no-op when assignees is empty.
	AddAssignees(ctx context.Context, owner, repo string, number int, assignees []string) error
}

// CreatePROptions defines the metadata required to open a cherry-pick PR.
type CreatePROptions struct {
	Title               string
	Body                string
	Head                string
	Base                string
	Draft               bool
	MaintainerCanModify bool
}

// Factory builds concrete GitHub clients (e.g., REST-backed) for the orchestrator.
type Factory interface {
	New(ctx context.Context, token string) (Client, error)
}

// retryableError marks an error that may succeed if the operation is retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	if e == nil || e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// IsRetryable reports whether the supplied error resulted from a retryable GitHub
// API failure (for example, a transient network problem or rate-limited request).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var target *retryableError
	return errors.As(err, &target)
}
