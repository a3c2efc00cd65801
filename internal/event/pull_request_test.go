package event_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/backport-action/internal/event"
)

var _ = Describe("ParsePullRequestEvent", func() {
	const sample = `{
		"action": "closed",
		"repository": {
			"name": "backport-action",
			"owner": {"login": "rancher"}
		},
		"pull_request": {
			"number": 123,
			"merged": true,
			"merge_commit_sha": "abc123",
			"title": "Fix bug",
			"body": "Body text",
			"user": {"login": "octocat"},
			"assignee": {"login": "alice"},
			"assignees": [{"login": "alice"}, {"login": "bob"}],
			"head": {"ref": "fix-bug", "sha": "def456"},
			"base": {"ref": "main"},
			"labels": [
				{"name": "kind/bug"},
				{"name": " "},
				{"name": "area/cli"}
			]
		}
	}`

	It("parses repository and pull request details", func() {
		payload, err := event.ParsePullRequestEvent(strings.NewReader(sample))
		Expect(err).NotTo(HaveOccurred())

		Expect(payload.Action).To(Equal(event.PullRequestActionClosed))
		Expect(payload.Repository).To(Equal(event.Repository{Owner: "rancher", Name: "backport-action"}))

		pr := payload.PullRequest
		Expect(pr.Number).To(Equal(123))
		Expect(pr.Merged).To(BeTrue())
		Expect(pr.MergeCommitSHA).To(Equal("abc123"))
		Expect(pr.HeadRef).To(Equal("fix-bug"))
		Expect(pr.HeadSHA).To(Equal("def456"))
		Expect(pr.BaseRef).To(Equal("main"))
		Expect(pr.Author).To(Equal("octocat"))
		Expect(pr.Assignee).To(Equal("alice"))
		Expect(pr.Title).To(Equal("Fix bug"))
		Expect(pr.Body).To(Equal("Body text"))
		Expect(pr.Labels).To(Equal([]string{"kind/bug", "area/cli"}))
	})

	It("falls back to the first assignee when the singular field is absent", func() {
		payload, err := event.ParsePullRequestEvent(strings.NewReader(`{"pull_request":{"number":2,"assignees":[{"login":""},{"login":"bob"}]}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.PullRequest.Assignee).To(Equal("bob"))
	})

	It("normalizes empty fields", func() {
		payload, err := event.ParsePullRequestEvent(strings.NewReader(`{"action":"CLOSED","repository":{"name":"repo","owner":{"login":"ORG"}},"pull_request":{"number":1,"merged":false,"head":{"sha":""}}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.Action).To(Equal(event.PullRequestActionClosed))
		Expect(payload.PullRequest.Merged).To(BeFalse())
		Expect(payload.PullRequest.MergeCommitSHA).To(BeEmpty())
		Expect(payload.PullRequest.Assignee).To(BeEmpty())
		Expect(payload.PullRequest.Labels).To(BeEmpty())
	})

	It("rejects payloads without a pull request", func() {
		_, err := event.ParsePullRequestEvent(strings.NewReader(`{"action":"opened","issue":{"number":1}}`))
		Expect(errors.Is(err, event.ErrNotPullRequestEvent)).To(BeTrue())
	})

	It("reports malformed JSON", func() {
		_, err := event.ParsePullRequestEvent(strings.NewReader(`{"pull_request":`))
		Expect(err).To(MatchError(ContainSubstring("decode pull_request event")))
	})

	It("reads the payload from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "event.json")
		Expect(os.WriteFile(path, []byte(sample), 0o600)).To(Succeed())

		payload, err := event.ParsePullRequestEventFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(payload.PullRequest.Number).To(Equal(123))

		_, err = event.ParsePullRequestEventFile(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(MatchError(ContainSubstring("open event file")))
	})
})

var _ = Describe("CheckEventName", func() {
	DescribeTable("accepts pull request triggers",
		func(name string) {
			Expect(event.CheckEventName(name)).To(Succeed())
		},
		Entry("pull_request", "pull_request"),
		Entry("pull_request_target", "pull_request_target"),
	)

	It("rejects other triggers", func() {
		err := event.CheckEventName("push")
		Expect(errors.Is(err, event.ErrNotPullRequestEvent)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring(`"push"`))
	})
})
