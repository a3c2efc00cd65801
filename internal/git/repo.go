package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const defaultRemote = "origin"

// Repository issues git commands against a single working tree. Every method that
// does not document otherwise returns a *CommandError when git exits non-zero.
type Repository struct {
	runner Runner
	dir    string
	remote string
}

// NewRepository returns a Repository rooted at dir that talks to the "origin" remote.
func NewRepository(runner Runner, dir string) *Repository {
	if dir == "" {
		dir = "."
	}
	return &Repository{runner: runner, dir: dir, remote: defaultRemote}
}

// Dir returns the working tree the repository runs commands in.
func (r *Repository) Dir() string {
	return r.dir
}

// Remote returns the remote name used for fetch, pull and push.
func (r *Repository) Remote() string {
	return r.remote
}

// Submodule returns a Repository rooted at the submodule checked out at path.
func (r *Repository) Submodule(path string) *Repository {
	return &Repository{runner: r.runner, dir: filepath.Join(r.dir, path), remote: r.remote}
}

// Exec runs git and returns the raw result regardless of exit status.
func (r *Repository) Exec(ctx context.Context, args ...string) (Result, error) {
	return r.runner.Run(ctx, r.dir, args...)
}

func (r *Repository) run(ctx context.Context, args ...string) (Result, error) {
	res, err := r.Exec(ctx, args...)
	if err != nil {
		return Result{}, err
	}
	if !res.Success() {
		return res, newCommandError(args, res)
	}
	return res, nil
}

// ConfigureIdentity sets the local committer identity.
func (r *Repository) ConfigureIdentity(ctx context.Context, name, email string) error {
	if name != "" {
		if _, err := r.run(ctx, "config", "user.name", name); err != nil {
			return err
		}
	}
	if email != "" {
		if _, err := r.run(ctx, "config", "user.email", email); err != nil {
			return err
		}
	}
	return nil
}

// Fetch updates the remote-tracking ref for branch.
func (r *Repository) Fetch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "fetch", r.remote, branch)
	return err
}

// DiffNameOnly lists the paths that differ between the working tree and ref.
func (r *Repository) DiffNameOnly(ctx context.Context, ref string) (string, error) {
	res, err := r.run(ctx, "diff", ref, "--name-only")
	return res.Stdout, err
}

// RemoteRef returns "<remote>/<branch>".
func (r *Repository) RemoteRef(branch string) string {
	return r.remote + "/" + branch
}

// Checkout switches to an existing branch.
func (r *Repository) Checkout(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "checkout", branch)
	return err
}

// CheckoutNewBranch creates branch and switches to it. When startPoint is empty the
// branch starts at HEAD.
func (r *Repository) CheckoutNewBranch(ctx context.Context, branch, startPoint string) error {
	args := []string{"checkout", "-b", branch}
	if startPoint != "" {
		args = append(args, startPoint)
	}
	_, err := r.run(ctx, args...)
	return err
}

// Pull merges the remote branch into the current branch.
func (r *Repository) Pull(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "pull", r.remote, branch)
	return err
}

// Add stages the given paths.
func (r *Repository) Add(ctx context.Context, paths ...string) error {
	_, err := r.run(ctx, append([]string{"add"}, paths...)...)
	return err
}

// HasStagedChanges reports whether the index differs from HEAD.
func (r *Repository) HasStagedChanges(ctx context.Context) (bool, error) {
	args := []string{"diff", "--cached", "--quiet"}
	res, err := r.Exec(ctx, args...)
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, newCommandError(args, res)
	}
}

// CommitOptions controls a single git commit invocation.
type CommitOptions struct {
	Message string
	// Author overrides the commit author ("Name <email>").
	Author string
	// All stages modified tracked files before committing (-a).
	All bool
	// Amend rewrites HEAD, keeping its message.
	Amend bool
}

// Commit records a commit built from opts.
func (r *Repository) Commit(ctx context.Context, opts CommitOptions) error {
	args := []string{"commit"}
	if opts.Author != "" {
		args = append(args, "--author", opts.Author)
	}
	switch {
	case opts.Amend:
		args = append(args, "--amend", "--no-edit")
	case opts.All:
		args = append(args, "-am", opts.Message)
	default:
		args = append(args, "-m", opts.Message)
	}
	_, err := r.run(ctx, args...)
	return err
}

// CommitMessage returns the raw body of the commit.
func (r *Repository) CommitMessage(ctx context.Context, sha string) (string, error) {
	res, err := r.run(ctx, "log", "--format=%B", "-n", "1", sha)
	return res.Stdout, err
}

// CommitAuthor returns the "Name <email>" identity of the commit author.
func (r *Repository) CommitAuthor(ctx context.Context, sha string) (string, error) {
	res, err := r.run(ctx, "log", "-1", "--pretty=format:%an <%ae>", sha)
	return res.Stdout, err
}

// RevParse resolves rev to a commit id.
func (r *Repository) RevParse(ctx context.Context, rev string) (string, error) {
	res, err := r.run(ctx, "rev-parse", rev)
	return res.Stdout, err
}

// ResetSoft moves HEAD back n commits, keeping the index and working tree.
func (r *Repository) ResetSoft(ctx context.Context, n int) error {
	_, err := r.run(ctx, "reset", "--soft", "HEAD~"+strconv.Itoa(n))
	return err
}

// IsMergeCommit reports whether sha has more than one parent.
func (r *Repository) IsMergeCommit(ctx context.Context, sha string) (bool, error) {
	res, err := r.run(ctx, "rev-list", "--parents", "-n", "1", sha)
	if err != nil {
		return false, err
	}
	// "<sha> <parent1> [<parent2> ...]"
	return len(strings.Fields(res.Stdout)) > 2, nil
}

// CherryPick applies sha to the current branch. Merge commits are picked against
// their first parent. The raw result is returned so callers can classify conflicts;
// a non-zero exit is not an error here.
func (r *Repository) CherryPick(ctx context.Context, sha string) (Result, error) {
	isMerge, err := r.IsMergeCommit(ctx, sha)
	if err != nil {
		return Result{}, fmt.Errorf("check if merge commit: %w", err)
	}
	if isMerge {
		return r.Exec(ctx, "cherry-pick", "-m", "1", sha)
	}
	return r.Exec(ctx, "cherry-pick", sha)
}

// Push publishes branch to the remote.
func (r *Repository) Push(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "push", r.remote, branch)
	return err
}

// DeleteBranch force-deletes a local branch.
func (r *Repository) DeleteBranch(ctx context.Context, branch string) error {
	_, err := r.run(ctx, "branch", "-D", branch)
	return err
}
