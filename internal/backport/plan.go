// Package backport carries a merged pull request onto another base branch: it
// detects whether anything needs to move, optionally fast-forwards a submodule,
// cherry-picks the merge commit onto a fresh branch and pushes it.
package backport

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// NewBranchSuffix is appended to the source head branch to name the backport branch.
	NewBranchSuffix = "-cherry-pick"

	// TemporaryBranch isolates the submodule bump until it is folded into the cherry-pick.
	TemporaryBranch = "temp-branch-for-cherry-pick"
)

// ErrMissingMergeCommit is returned when the pull request carries no merge commit sha.
var ErrMissingMergeCommit = errors.New("merged pull request has no merge commit sha")

// Plan holds the branch names used by a single run.
type Plan struct {
	NewBranch  string
	TempBranch string
}

// NewPlan derives the branch names from the head branch of the merged pull request.
func NewPlan(headRef string) (Plan, error) {
	headRef = strings.TrimSpace(headRef)
	if headRef == "" {
		return Plan{}, fmt.Errorf("head branch name is required to name the cherry-pick branch")
	}
	return Plan{
		NewBranch:  headRef + NewBranchSuffix,
		TempBranch: TemporaryBranch,
	}, nil
}
