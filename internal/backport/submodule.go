package backport

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rancher/backport-action/internal/git"
)

// SubmoduleAdvancer fast-forwards a submodule pointer to the tip of a remote branch
// and folds the bump into the merge commit that is about to be cherry-picked.
type SubmoduleAdvancer struct {
	repo *git.Repository
	log  *slog.Logger
}

// AdvanceInput describes a single submodule advance.
type AdvanceInput struct {
	Plan         Plan
	Submodule    string
	TargetBranch string
	// MergeCommitSHA is the merge commit of the source pull request.
	MergeCommitSHA string
}

// NewSubmoduleAdvancer returns an advancer operating on repo.
func NewSubmoduleAdvancer(repo *git.Repository, logger *slog.Logger) *SubmoduleAdvancer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SubmoduleAdvancer{repo: repo, log: logger}
}

// Advance checks out Plan.TempBranch at the merge commit, moves the submodule to
// the latest TargetBranch and squashes the bump together with the merge commit so
// HEAD ends as a single commit carrying the original merge message. When the
// submodule is already up to date HEAD is left on the merge commit.
func (a *SubmoduleAdvancer) Advance(ctx context.Context, in AdvanceInput) error {
	if in.MergeCommitSHA == "" {
		return ErrMissingMergeCommit
	}
	if in.Submodule == "" {
		return fmt.Errorf("submodule name is required")
	}

	if err := a.repo.CheckoutNewBranch(ctx, in.Plan.TempBranch, in.MergeCommitSHA); err != nil {
		return fmt.Errorf("create temporary branch %s: %w", in.Plan.TempBranch, err)
	}

	sub := a.repo.Submodule(in.Submodule)
	if err := sub.Checkout(ctx, in.TargetBranch); err != nil {
		return fmt.Errorf("checkout %s in submodule %s: %w", in.TargetBranch, in.Submodule, err)
	}
	if err := sub.Pull(ctx, in.TargetBranch); err != nil {
		return fmt.Errorf("pull %s in submodule %s: %w", in.TargetBranch, in.Submodule, err)
	}

	if err := a.repo.Add(ctx, in.Submodule); err != nil {
		return fmt.Errorf("stage submodule %s: %w", in.Submodule, err)
	}

	staged, err := a.repo.HasStagedChanges(ctx)
	if err != nil {
		return fmt.Errorf("inspect staged submodule pointer: %w", err)
	}
	if !staged {
		a.log.Info("submodule already at the tip of the target branch", "submodule", in.Submodule, "target_branch", in.TargetBranch)
		return nil
	}

	bump := fmt.Sprintf("Update submodule %s to latest from %s", in.Submodule, in.TargetBranch)
	if err := a.repo.Commit(ctx, git.CommitOptions{Message: bump}); err != nil {
		return fmt.Errorf("commit submodule update: %w", err)
	}

	message, err := a.repo.CommitMessage(ctx, in.MergeCommitSHA)
	if err != nil {
		return fmt.Errorf("read message of merge commit %s: %w", in.MergeCommitSHA, err)
	}

	// The bump and the merge commit collapse into one commit with the merge message.
	if err := a.repo.ResetSoft(ctx, 2); err != nil {
		return fmt.Errorf("fold submodule update into merge commit: %w", err)
	}
	if err := a.repo.Commit(ctx, git.CommitOptions{Message: message}); err != nil {
		return fmt.Errorf("recommit merge commit with submodule update: %w", err)
	}

	a.log.Info("advanced submodule", "submodule", in.Submodule, "target_branch", in.TargetBranch, "temp_branch", in.Plan.TempBranch)
	return nil
}
