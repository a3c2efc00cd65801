package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rancher/backport-action/internal/event"
	"github.com/rancher/backport-action/internal/git"
	gh "github.com/rancher/backport-action/internal/github"
	"github.com/rancher/backport-action/internal/orchestrator"
)

// Runner glues together the orchestrator and supporting services to execute the backport flow.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	gitRunner git.Runner // only set for testing via NewRunnerWithDeps
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	factory := gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL)
	if cfg.DryRun {
		factory = gh.NewNoopFactory(logger)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: factory,
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, gitRunner git.Runner) *Runner {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, gitRunner: gitRunner}
}

// Run executes the application using the provided context.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("starting backport action run", "target_branch", r.cfg.TargetBranch, "submodule", r.cfg.SubmoduleName, "dry_run", r.cfg.DryRun)

	if err := event.CheckEventName(os.Getenv("GITHUB_EVENT_NAME")); err != nil {
		return err
	}

	eventPath := strings.TrimSpace(os.Getenv("GITHUB_EVENT_PATH"))
	if eventPath == "" {
		return fmt.Errorf("GITHUB_EVENT_PATH is required for pull_request events")
	}

	payload, err := event.ParsePullRequestEventFile(eventPath)
	if err != nil {
		return fmt.Errorf("parse pull request event: %w", err)
	}

	if payload.Repository.Owner == "" || payload.Repository.Name == "" {
		return fmt.Errorf("event payload missing repository owner/name")
	}

	if payload.PullRequest.Number == 0 {
		return fmt.Errorf("event payload missing pull request number")
	}

	ghClient, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
	if err != nil {
		return fmt.Errorf("initialize github client: %w", err)
	}

	runner := r.gitRunner
	if runner == nil {
		shell, err := git.NewShellRunner("", r.log)
		if err != nil {
			return fmt.Errorf("configure git: %w", err)
		}
		runner = shell
	}

	repo := git.NewRepository(runner, r.cfg.WorkingDirectory)
	orch := orchestrator.New(r.cfg.OrchestratorConfig(), ghClient, repo, r.log)

	result, err := orch.Run(ctx, payload.Repository.Owner, payload.Repository.Name, payload.PullRequest)
	if err != nil && result.PullRequest == nil {
		if gh.IsRetryable(err) {
			r.log.Warn("GitHub request failed with a transient error; re-running the workflow may succeed", "error", err)
		}
		return fmt.Errorf("backport pull request #%d: %w", payload.PullRequest.Number, err)
	}

	if err := r.writeStepSummary(result); err != nil {
		r.log.Warn("failed to write step summary", "error", err)
	}

	if err := r.writeGitHubOutputs(result); err != nil {
		r.log.Warn("failed to write action outputs", "error", err)
	}

	if err != nil {
		return fmt.Errorf("finish cherry-pick pull request #%d: %w", result.PullRequest.Number, err)
	}

	if result.Skipped {
		r.log.Info("nothing to cherry-pick", "reason", result.SkippedReason)
	}

	return nil
}
