package backport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/rancher/backport-action/internal/event"
	"github.com/rancher/backport-action/internal/git"
)

// ConflictMarker is the token git prints for every conflicted path during a cherry-pick.
const ConflictMarker = "CONFLICT"

// PickResult classifies the output of a cherry-pick.
type PickResult string

const (
	PickClean      PickResult = "clean"
	PickConflicted PickResult = "conflicted"
)

// ClassifyCherryPick inspects everything git printed for a cherry-pick.
func ClassifyCherryPick(output string) PickResult {
	if strings.Contains(output, ConflictMarker) {
		return PickConflicted
	}
	return PickClean
}

// ConflictCommitMessage is the message used when conflicts are committed as-is.
func ConflictCommitMessage(submodule string) string {
	msg := "Commit with unresolved merge conflicts"
	if submodule != "" {
		msg += fmt.Sprintf(" outside of submodule '%s'", submodule)
	}
	return msg
}

// State is a step of the cherry-pick state machine.
type State string

const (
	StateStart            State = "start"
	StateAuthorResolved   State = "author-resolved"
	StateBranchesPrepared State = "branches-prepared"
	StateCherryPicked     State = "cherry-picked"
	StateConflicted       State = "conflicted"
	StateClean            State = "clean"
	StateCommitted        State = "committed"
	StatePushed           State = "pushed"
	StatePushFailed       State = "push-failed"
)

// PushError reports a rejected push of the cherry-pick branch. The branch has
// already been committed locally when it is returned.
type PushError struct {
	Branch   string
	ExitCode int
	Message  string
	Err      error
}

func (e *PushError) Error() string {
	return fmt.Sprintf("failure to push changes to %s. exit code: %d; message: %s", e.Branch, e.ExitCode, e.Message)
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// CherryPickInput describes a single cherry-pick.
type CherryPickInput struct {
	PullRequest  event.PullRequest
	TargetBranch string
	Plan         Plan
	// Submodule is set when the submodule was advanced on Plan.TempBranch.
	Submodule string
}

// Outcome records what the coordinator did.
type Outcome struct {
	Branch     string
	Source     string
	Author     string
	Conflicted bool
	State      State
	History    []State
}

func (o *Outcome) enter(s State) {
	o.State = s
	o.History = append(o.History, s)
}

// Coordinator cherry-picks a merged pull request onto a new branch based on the
// target branch, commits the result as the original author and pushes it.
type Coordinator struct {
	repo *git.Repository
	log  *slog.Logger
}

// NewCoordinator returns a coordinator operating on repo.
func NewCoordinator(repo *git.Repository, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Coordinator{repo: repo, log: logger}
}

// CherryPick runs the state machine to completion. Conflicts are not an error:
// they are committed and reported through Outcome.Conflicted. A rejected push
// yields a *PushError; any other unexpected git failure is returned as is.
func (c *Coordinator) CherryPick(ctx context.Context, in CherryPickInput) (Outcome, error) {
	out := Outcome{Branch: in.Plan.NewBranch}
	out.enter(StateStart)

	sha := in.PullRequest.MergeCommitSHA
	if sha == "" {
		return out, ErrMissingMergeCommit
	}

	author, err := c.repo.CommitAuthor(ctx, sha)
	if err != nil {
		return out, fmt.Errorf("resolve author of %s: %w", sha, err)
	}
	out.Author = author
	out.enter(StateAuthorResolved)

	if err := c.repo.Checkout(ctx, in.TargetBranch); err != nil {
		return out, fmt.Errorf("checkout target branch %s: %w", in.TargetBranch, err)
	}
	if err := c.repo.CheckoutNewBranch(ctx, in.Plan.NewBranch, ""); err != nil {
		return out, fmt.Errorf("create branch %s: %w", in.Plan.NewBranch, err)
	}
	out.enter(StateBranchesPrepared)

	out.Source = sha
	if in.Submodule != "" {
		out.Source = in.Plan.TempBranch
	}

	res, err := c.repo.CherryPick(ctx, out.Source)
	if err != nil {
		return out, fmt.Errorf("cherry-pick %s: %w", out.Source, err)
	}
	out.enter(StateCherryPicked)

	switch ClassifyCherryPick(res.Output()) {
	case PickConflicted:
		out.Conflicted = true
		out.enter(StateConflicted)
		c.log.Warn("cherry-pick has conflicts, committing them for manual resolution", "source", out.Source, "branch", out.Branch)

		if err := c.repo.Add(ctx, "."); err != nil {
			return out, fmt.Errorf("stage conflicted files: %w", err)
		}
		if err := c.repo.Commit(ctx, git.CommitOptions{
			Author:  author,
			All:     true,
			Message: ConflictCommitMessage(in.Submodule),
		}); err != nil {
			return out, fmt.Errorf("commit conflicted cherry-pick: %w", err)
		}
	default:
		if !res.Success() {
			return out, &git.CommandError{
				Args:     []string{"cherry-pick", out.Source},
				ExitCode: res.ExitCode,
				Stdout:   res.Stdout,
				Stderr:   res.Stderr,
			}
		}
		out.enter(StateClean)

		if err := c.repo.Commit(ctx, git.CommitOptions{Author: author, Amend: true}); err != nil {
			return out, fmt.Errorf("restore author on cherry-pick: %w", err)
		}
	}
	out.enter(StateCommitted)

	if err := c.repo.Push(ctx, out.Branch); err != nil {
		out.enter(StatePushFailed)
		pushErr := &PushError{Branch: out.Branch, ExitCode: -1, Message: err.Error(), Err: err}
		var cmdErr *git.CommandError
		if errors.As(err, &cmdErr) {
			pushErr.ExitCode = cmdErr.ExitCode
			pushErr.Message = cmdErr.Stderr
			if pushErr.Message == "" {
				pushErr.Message = cmdErr.Stdout
			}
		}
		return out, pushErr
	}
	out.enter(StatePushed)

	c.log.Info("pushed cherry-pick branch", "branch", out.Branch, "conflicted", out.Conflicted)
	return out, nil
}
