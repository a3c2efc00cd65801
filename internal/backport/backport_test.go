package backport_test

import (
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/backport-action/internal/backport"
	"github.com/rancher/backport-action/internal/event"
	"github.com/rancher/backport-action/internal/git"
)

const (
	mergeSHA = "abc123"
	author   = "Jane Doe <jane@example.com>"
)

var _ = Describe("NewPlan", func() {
	It("derives the branch names from the head branch", func() {
		plan, err := backport.NewPlan("fix-bug")
		Expect(err).NotTo(HaveOccurred())
		Expect(plan).To(Equal(backport.Plan{NewBranch: "fix-bug-cherry-pick", TempBranch: "temp-branch-for-cherry-pick"}))
	})

	It("rejects an empty head branch", func() {
		_, err := backport.NewPlan("  ")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("FilterSubmodulePaths", func() {
	DescribeTable("splits and filters diff output",
		func(diff, submodule string, expected []string) {
			Expect(backport.FilterSubmodulePaths(diff, submodule)).To(Equal(expected))
		},
		Entry("empty diff", "", "", []string{}),
		Entry("whitespace only", "\n  \n", "lib", []string{}),
		Entry("no submodule", "a.go\nb.go", "", []string{"a.go", "b.go"}),
		Entry("drops submodule contents and pointer", "lib\nlib/x.go\nlibrary/y.go\nsrc/z.go", "lib", []string{"library/y.go", "src/z.go"}),
		Entry("tolerates a trailing slash in the submodule name", "lib/x.go\nsrc/z.go", "lib/", []string{"src/z.go"}),
		Entry("only submodule changes", "lib/x.go\nlib/y.go", "lib", []string{}),
	)
})

var _ = Describe("ChangedPaths", func() {
	It("diffs against the remote target branch without mutating the repository", func() {
		runner := newScriptedRunner().on("diff origin/release/v1 --name-only", git.Result{Stdout: "lib/x.go\nsrc/z.go"})
		repo := git.NewRepository(runner, "/work")

		paths, err := backport.ChangedPaths(context.Background(), repo, "release/v1", "lib")
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(Equal([]string{"src/z.go"}))
		Expect(runner.args()).To(Equal([]string{"diff origin/release/v1 --name-only"}))
	})

	It("propagates diff failures", func() {
		runner := newScriptedRunner().on("diff origin/missing --name-only", git.Result{ExitCode: 128, Stderr: "fatal: bad revision"})
		_, err := backport.ChangedPaths(context.Background(), git.NewRepository(runner, "/work"), "missing", "")

		var cmdErr *git.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.ExitCode).To(Equal(128))
	})
})

var _ = Describe("ClassifyCherryPick", func() {
	It("flags output containing the conflict marker", func() {
		Expect(backport.ClassifyCherryPick("Auto-merging a.go\nCONFLICT (content): Merge conflict in a.go")).To(Equal(backport.PickConflicted))
	})

	It("treats everything else as clean", func() {
		Expect(backport.ClassifyCherryPick("[release abc] Fix bug\n 1 file changed")).To(Equal(backport.PickClean))
		Expect(backport.ClassifyCherryPick("")).To(Equal(backport.PickClean))
	})
})

var _ = Describe("ConflictCommitMessage", func() {
	It("mentions the submodule when one is configured", func() {
		Expect(backport.ConflictCommitMessage("")).To(Equal("Commit with unresolved merge conflicts"))
		Expect(backport.ConflictCommitMessage("lib")).To(Equal("Commit with unresolved merge conflicts outside of submodule 'lib'"))
	})
})

var _ = Describe("SubmoduleAdvancer", func() {
	var (
		ctx    context.Context
		runner *scriptedRunner
		repo   *git.Repository
		input  backport.AdvanceInput
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = newScriptedRunner()
		repo = git.NewRepository(runner, "/work")
		plan, err := backport.NewPlan("fix-bug")
		Expect(err).NotTo(HaveOccurred())
		input = backport.AdvanceInput{Plan: plan, Submodule: "lib", TargetBranch: "release/v1", MergeCommitSHA: mergeSHA}
	})

	It("folds the submodule bump into the merge commit", func() {
		runner.
			on("diff --cached --quiet", git.Result{ExitCode: 1}).
			on("log --format=%B -n 1 "+mergeSHA, git.Result{Stdout: "Merge pull request #7 from fork/fix-bug"})

		Expect(backport.NewSubmoduleAdvancer(repo, nil).Advance(ctx, input)).To(Succeed())

		Expect(runner.calls).To(Equal([]call{
			{Dir: "/work", Args: "checkout -b temp-branch-for-cherry-pick " + mergeSHA},
			{Dir: filepath.Join("/work", "lib"), Args: "checkout release/v1"},
			{Dir: filepath.Join("/work", "lib"), Args: "pull origin release/v1"},
			{Dir: "/work", Args: "add lib"},
			{Dir: "/work", Args: "diff --cached --quiet"},
			{Dir: "/work", Args: "commit -m Update submodule lib to latest from release/v1"},
			{Dir: "/work", Args: "log --format=%B -n 1 " + mergeSHA},
			{Dir: "/work", Args: "reset --soft HEAD~2"},
			{Dir: "/work", Args: "commit -m Merge pull request #7 from fork/fix-bug"},
		}))
	})

	It("leaves HEAD on the merge commit when the submodule is already current", func() {
		Expect(backport.NewSubmoduleAdvancer(repo, nil).Advance(ctx, input)).To(Succeed())

		Expect(runner.args()).To(Equal([]string{
			"checkout -b temp-branch-for-cherry-pick " + mergeSHA,
			"checkout release/v1",
			"pull origin release/v1",
			"add lib",
			"diff --cached --quiet",
		}))
	})

	It("fails when the submodule cannot be pulled", func() {
		runner.on("pull origin release/v1", git.Result{ExitCode: 1, Stderr: "fatal: couldn't find remote ref release/v1"})

		err := backport.NewSubmoduleAdvancer(repo, nil).Advance(ctx, input)
		Expect(err).To(MatchError(ContainSubstring("pull release/v1 in submodule lib")))
		Expect(runner.args()).NotTo(ContainElement("add lib"))
	})

	It("requires a merge commit", func() {
		input.MergeCommitSHA = ""
		Expect(backport.NewSubmoduleAdvancer(repo, nil).Advance(ctx, input)).To(MatchError(backport.ErrMissingMergeCommit))
		Expect(runner.calls).To(BeEmpty())
	})
})

var _ = Describe("Coordinator", func() {
	var (
		ctx    context.Context
		runner *scriptedRunner
		repo   *git.Repository
		input  backport.CherryPickInput
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = newScriptedRunner().
			on("log -1 --pretty=format:%an <%ae> "+mergeSHA, git.Result{Stdout: author}).
			on("rev-list --parents -n 1 "+mergeSHA, git.Result{Stdout: mergeSHA + " p1 p2"})
		repo = git.NewRepository(runner, "/work")

		plan, err := backport.NewPlan("fix-bug")
		Expect(err).NotTo(HaveOccurred())
		input = backport.CherryPickInput{
			PullRequest:  event.PullRequest{Number: 7, HeadRef: "fix-bug", Merged: true, MergeCommitSHA: mergeSHA},
			TargetBranch: "release/v1",
			Plan:         plan,
		}
	})

	It("cherry-picks a clean merge and restores the original author", func() {
		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		Expect(err).NotTo(HaveOccurred())

		Expect(out.Conflicted).To(BeFalse())
		Expect(out.Author).To(Equal(author))
		Expect(out.Source).To(Equal(mergeSHA))
		Expect(out.State).To(Equal(backport.StatePushed))
		Expect(out.History).To(Equal([]backport.State{
			backport.StateStart,
			backport.StateAuthorResolved,
			backport.StateBranchesPrepared,
			backport.StateCherryPicked,
			backport.StateClean,
			backport.StateCommitted,
			backport.StatePushed,
		}))

		Expect(runner.args()).To(Equal([]string{
			"log -1 --pretty=format:%an <%ae> " + mergeSHA,
			"checkout release/v1",
			"checkout -b fix-bug-cherry-pick",
			"rev-list --parents -n 1 " + mergeSHA,
			"cherry-pick -m 1 " + mergeSHA,
			"commit --author " + author + " --amend --no-edit",
			"push origin fix-bug-cherry-pick",
		}))
	})

	It("commits conflicts as-is and still pushes", func() {
		runner.on("cherry-pick -m 1 "+mergeSHA, git.Result{
			ExitCode: 1,
			Stdout:   "Auto-merging a.go\nCONFLICT (content): Merge conflict in a.go",
			Stderr:   "error: could not apply abc123",
		})

		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Conflicted).To(BeTrue())
		Expect(out.History).To(ContainElement(backport.StateConflicted))
		Expect(out.History).NotTo(ContainElement(backport.StateClean))

		Expect(runner.args()).To(HaveExactElements(
			"log -1 --pretty=format:%an <%ae> "+mergeSHA,
			"checkout release/v1",
			"checkout -b fix-bug-cherry-pick",
			"rev-list --parents -n 1 "+mergeSHA,
			"cherry-pick -m 1 "+mergeSHA,
			"add .",
			"commit --author "+author+" -am Commit with unresolved merge conflicts",
			"push origin fix-bug-cherry-pick",
		))
	})

	It("picks the temporary branch when a submodule was advanced", func() {
		input.Submodule = "lib"
		runner.
			on("rev-list --parents -n 1 temp-branch-for-cherry-pick", git.Result{Stdout: "t1 p1"}).
			on("cherry-pick temp-branch-for-cherry-pick", git.Result{ExitCode: 1, Stderr: "CONFLICT (submodule): Merge conflict in lib"})

		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Source).To(Equal("temp-branch-for-cherry-pick"))
		Expect(out.Conflicted).To(BeTrue())
		Expect(runner.args()).To(ContainElement("commit --author " + author + " -am Commit with unresolved merge conflicts outside of submodule 'lib'"))
	})

	It("reports a failed push with the exit code and remote message", func() {
		runner.on("push origin fix-bug-cherry-pick", git.Result{ExitCode: 1, Stderr: "remote: Permission denied"})

		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		var pushErr *backport.PushError
		Expect(errors.As(err, &pushErr)).To(BeTrue())
		Expect(pushErr.Branch).To(Equal("fix-bug-cherry-pick"))
		Expect(pushErr.ExitCode).To(Equal(1))
		Expect(pushErr.Message).To(Equal("remote: Permission denied"))
		Expect(err.Error()).To(Equal("failure to push changes to fix-bug-cherry-pick. exit code: 1; message: remote: Permission denied"))
		Expect(out.State).To(Equal(backport.StatePushFailed))
	})

	It("escalates a failed cherry-pick that did not conflict", func() {
		runner.on("cherry-pick -m 1 "+mergeSHA, git.Result{ExitCode: 128, Stderr: "fatal: bad object abc123"})

		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		var cmdErr *git.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.ExitCode).To(Equal(128))
		Expect(out.State).To(Equal(backport.StateCherryPicked))
		Expect(runner.args()).NotTo(ContainElement(HavePrefix("push")))
	})

	It("stops before touching branches when the author cannot be resolved", func() {
		runner.on("log -1 --pretty=format:%an <%ae> "+mergeSHA, git.Result{ExitCode: 128, Stderr: "fatal: bad object"})

		out, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		Expect(err).To(MatchError(ContainSubstring("resolve author")))
		Expect(out.State).To(Equal(backport.StateStart))
		Expect(runner.calls).To(HaveLen(1))
	})

	It("requires a merge commit", func() {
		input.PullRequest.MergeCommitSHA = ""
		_, err := backport.NewCoordinator(repo, nil).CherryPick(ctx, input)
		Expect(err).To(MatchError(backport.ErrMissingMergeCommit))
		Expect(runner.calls).To(BeEmpty())
	})
})
