package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rancher/backport-action/internal/backport"
	"github.com/rancher/backport-action/internal/event"
	"github.com/rancher/backport-action/internal/git"
	gh "github.com/rancher/backport-action/internal/github"
	"github.com/rancher/backport-action/internal/labels"
)

// Orchestrator drives a single backport: change detection, the optional submodule
// advance, the cherry-pick and the follow-up pull request.
type Orchestrator struct {
	cfg  Config
	gh   gh.Client
	repo *git.Repository
	log  *slog.Logger
}

// Result captures the outcome of a single orchestrator run.
type Result struct {
	Skipped       bool
	SkippedReason string
	DryRun        bool
	ChangedPaths  []string
	Branch        string
	Conflicted    bool
	PullRequest   *gh.PullRequest
	Labels        []string
	Assignee      string
}

// New returns a configured Orchestrator instance.
func New(cfg Config, ghClient gh.Client, repo *git.Repository, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{cfg: cfg, gh: ghClient, repo: repo, log: logger}
}

// stage is one step of the local git pipeline. Stages run in order and the first
// failure aborts the run.
type stage struct {
	name string
	run  func(ctx context.Context) error
}

// Run carries pr onto the configured target branch. A partially populated Result
// is returned alongside errors raised after the pull request was opened.
func (o *Orchestrator) Run(ctx context.Context, owner, repo string, pr event.PullRequest) (Result, error) {
	if o.repo == nil {
		return Result{}, fmt.Errorf("git repository is required")
	}
	if o.gh == nil && !o.cfg.DryRun {
		return Result{}, fmt.Errorf("github client is required")
	}

	if !pr.Merged {
		return Result{}, fmt.Errorf("pull request #%d: %w", pr.Number, event.ErrNotMerged)
	}
	if pr.MergeCommitSHA == "" {
		return Result{}, fmt.Errorf("pull request #%d: %w", pr.Number, backport.ErrMissingMergeCommit)
	}

	target := labels.NormalizeBranch(o.cfg.TargetBranch)
	if err := labels.ValidateBranch(target); err != nil {
		return Result{}, fmt.Errorf("target branch: %w", err)
	}

	plan, err := backport.NewPlan(pr.HeadRef)
	if err != nil {
		return Result{}, err
	}

	log := o.log.With("pr", pr.Number, "target_branch", target, "branch", plan.NewBranch)

	if err := o.repo.Fetch(ctx, target); err != nil {
		return Result{}, fmt.Errorf("fetch target branch %s: %w", target, err)
	}

	changed, err := backport.ChangedPaths(ctx, o.repo, target, o.cfg.SubmoduleName)
	if err != nil {
		return Result{}, err
	}

	result := Result{ChangedPaths: changed, Branch: plan.NewBranch}

	if len(changed) == 0 {
		result.Skipped = true
		result.SkippedReason = fmt.Sprintf("no changes between current branch and target branch %s", target)
		log.Info("skipping cherry-pick", "reason", result.SkippedReason)
		return result, nil
	}
	log.Info("changes detected", "paths", len(changed))

	if o.cfg.DryRun {
		result.DryRun = true
		log.Info("dry run enabled, leaving the repository untouched", "submodule", o.cfg.SubmoduleName, "changed_paths", changed)
	} else {
		var outcome backport.Outcome
		if err := o.runStages(ctx, log, o.stages(pr, target, plan, &outcome)); err != nil {
			result.Conflicted = outcome.Conflicted
			return result, err
		}
		result.Conflicted = outcome.Conflicted
	}

	return o.openPullRequest(ctx, log, owner, repo, pr, target, plan, result)
}

func (o *Orchestrator) stages(pr event.PullRequest, target string, plan backport.Plan, outcome *backport.Outcome) []stage {
	submodule := strings.TrimSpace(o.cfg.SubmoduleName)

	stages := []stage{{
		name: "configure-identity",
		run: func(ctx context.Context) error {
			return o.repo.ConfigureIdentity(ctx, o.cfg.GitUserName, o.cfg.GitUserEmail)
		},
	}}

	if submodule != "" {
		advancer := backport.NewSubmoduleAdvancer(o.repo, o.log)
		stages = append(stages, stage{
			name: "advance-submodule",
			run: func(ctx context.Context) error {
				return advancer.Advance(ctx, backport.AdvanceInput{
					Plan:           plan,
					Submodule:      submodule,
					TargetBranch:   target,
					MergeCommitSHA: pr.MergeCommitSHA,
				})
			},
		})
	}

	coordinator := backport.NewCoordinator(o.repo, o.log)
	stages = append(stages, stage{
		name: "cherry-pick",
		run: func(ctx context.Context) error {
			out, err := coordinator.CherryPick(ctx, backport.CherryPickInput{
				PullRequest:  pr,
				TargetBranch: target,
				Plan:         plan,
				Submodule:    submodule,
			})
			*outcome = out
			return err
		},
	})

	if submodule != "" {
		stages = append(stages, stage{
			name: "delete-temporary-branch",
			run: func(ctx context.Context) error {
				return o.repo.DeleteBranch(ctx, plan.TempBranch)
			},
		})
	}

	return stages
}

func (o *Orchestrator) runStages(ctx context.Context, log *slog.Logger, stages []stage) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Debug("stage started", "stage", s.name)
		if err := s.run(ctx); err != nil {
			var pushErr *backport.PushError
			if errors.As(err, &pushErr) {
				return err
			}
			return fmt.Errorf("%s: %w", s.name, err)
		}
		log.Debug("stage completed", "stage", s.name)
	}
	return nil
}

func (o *Orchestrator) openPullRequest(ctx context.Context, log *slog.Logger, owner, repo string, pr event.PullRequest, target string, plan backport.Plan, result Result) (Result, error) {
	client := o.gh
	if result.DryRun {
		client = gh.NewNoopClient(log)
	}

	body, err := RenderBody(o.cfg.BodyTemplate, BodyData{
		Owner:       owner,
		Repo:        repo,
		PullRequest: pr,
		Target:      target,
		Branch:      plan.NewBranch,
		Conflicted:  result.Conflicted,
		Submodule:   o.cfg.SubmoduleName,
	})
	if err != nil {
		return result, err
	}

	created, err := client.CreatePullRequest(ctx, owner, repo, gh.CreatePROptions{
		Title:               pullRequestTitle(pr.Title, o.cfg.TitleSuffix),
		Body:                body,
		Head:                plan.NewBranch,
		Base:                target,
		MaintainerCanModify: true,
	})
	if err != nil {
		return result, fmt.Errorf("open pull request for %s: %w", plan.NewBranch, err)
	}
	result.PullRequest = &created
	if !result.DryRun {
		log.Info("created cherry-pick pull request", "pr_number", created.Number, "pr_url", created.URL)
	}

	result.Labels = labels.Merge(pr.Labels, o.cfg.ExtraLabels)
	if err := client.AddLabels(ctx, owner, repo, created.Number, result.Labels); err != nil {
		return result, err
	}

	result.Assignee = strings.TrimSpace(o.cfg.Assignee)
	if result.Assignee == "" {
		result.Assignee = pr.Assignee
	}
	var assignees []string
	if result.Assignee != "" {
		assignees = []string{result.Assignee}
	}
	if err := client.AddAssignees(ctx, owner, repo, created.Number, assignees); err != nil {
		return result, err
	}

	return result, nil
}

func pullRequestTitle(title, suffix string) string {
	return strings.TrimSpace(strings.TrimSpace(title) + " " + strings.TrimSpace(suffix))
}
