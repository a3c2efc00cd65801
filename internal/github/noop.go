package gh

import (
	"context"
	"io"
	"log/slog"
)

// NewNoopFactory returns a Factory whose clients log the calls they would make
// and never reach GitHub. It backs dry runs, which need no token.
func NewNoopFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return noopFactory{log: logger}
}

type noopFactory struct {
	log *slog.Logger
}

func (f noopFactory) New(ctx context.Context, token string) (Client, error) {
	return NewNoopClient(f.log), nil
}

// NewNoopClient returns a Client that only logs.
func NewNoopClient(logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return noopClient{log: logger}
}

type noopClient struct {
	log *slog.Logger
}

func (c noopClient) CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error) {
	c.log.Info("dry run: would open pull request", "repo", owner+"/"+repo, "head", input.Head, "base", input.Base, "title", input.Title)
	return PullRequest{Head: input.Head, Base: input.Base}, nil
}

func (c noopClient) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) > 0 {
		c.log.Info("dry run: would add labels", "repo", owner+"/"+repo, "labels", labels)
	}
	return nil
}

func (c noopClient) AddAssignees(ctx context.Context, owner, repo string, number int, assignees []string) error {
	if len(assignees) > 0 {
		c.log.Info("dry run: would add assignees", "repo", owner+"/"+repo, "assignees", assignees)
	}
	return nil
}
