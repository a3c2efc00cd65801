package event

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/go-github/v55/github"
)

// Event names that carry a pull request payload.
const (
	NamePullRequest       = "pull_request"
	NamePullRequestTarget = "pull_request_target"
)

var (
	// ErrNotPullRequestEvent is returned when the workflow was not triggered by a pull request.
	ErrNotPullRequestEvent = errors.New("workflow was not triggered by a pull request event")
	// ErrNotMerged is returned when the triggering pull request has not been merged.
	ErrNotMerged = errors.New("pull request is not merged")
)

// PullRequestAction enumerates actions we care about from pull_request events.
type PullRequestAction string

const (
	PullRequestActionClosed PullRequestAction = "closed"
)

// PullRequestPayload captures the subset of GitHub pull_request event data used by the action.
type PullRequestPayload struct {
	Action      PullRequestAction
	Repository  Repository
	PullRequest PullRequest
}

// Repository identifies the owner/name of the repository where the event originated.
type Repository struct {
	Owner string
	Name  string
}

// PullRequest is the merged pull request being carried to another branch.
type PullRequest struct {
	Number         int
	Title          string
	Body           string
	HeadRef        string
	HeadSHA        string
	BaseRef        string
	Author         string
	Assignee       string
	Labels         []string
	Merged         bool
	MergeCommitSHA string
}

// CheckEventName rejects workflow triggers that do not carry a pull request.
func CheckEventName(name string) error {
	switch strings.TrimSpace(name) {
	case NamePullRequest, NamePullRequestTarget:
		return nil
	default:
		return fmt.Errorf("%w: got %q", ErrNotPullRequestEvent, name)
	}
}

// ParsePullRequestEvent decodes a GitHub pull_request event payload from the provided reader.
func ParsePullRequestEvent(r io.Reader) (PullRequestPayload, error) {
	var raw github.PullRequestEvent

	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return PullRequestPayload{}, fmt.Errorf("decode pull_request event: %w", err)
	}
	if raw.PullRequest == nil {
		return PullRequestPayload{}, fmt.Errorf("%w: payload has no pull_request object", ErrNotPullRequestEvent)
	}

	pr := raw.GetPullRequest()
	payload := PullRequestPayload{
		Action: PullRequestAction(strings.ToLower(strings.TrimSpace(raw.GetAction()))),
		Repository: Repository{
			Owner: strings.TrimSpace(raw.GetRepo().GetOwner().GetLogin()),
			Name:  strings.TrimSpace(raw.GetRepo().GetName()),
		},
		PullRequest: PullRequest{
			Number:         pr.GetNumber(),
			Title:          pr.GetTitle(),
			Body:           pr.GetBody(),
			HeadRef:        strings.TrimSpace(pr.GetHead().GetRef()),
			HeadSHA:        strings.TrimSpace(pr.GetHead().GetSHA()),
			BaseRef:        strings.TrimSpace(pr.GetBase().GetRef()),
			Author:         strings.TrimSpace(pr.GetUser().GetLogin()),
			Assignee:       strings.TrimSpace(pr.GetAssignee().GetLogin()),
			Merged:         pr.GetMerged(),
			MergeCommitSHA: strings.TrimSpace(pr.GetMergeCommitSHA()),
		},
	}

	if payload.PullRequest.Assignee == "" {
		for _, a := range pr.Assignees {
			if login := strings.TrimSpace(a.GetLogin()); login != "" {
				payload.PullRequest.Assignee = login
				break
			}
		}
	}

	for _, l := range pr.Labels {
		if name := strings.TrimSpace(l.GetName()); name != "" {
			payload.PullRequest.Labels = append(payload.PullRequest.Labels, name)
		}
	}

	return payload, nil
}

// ParsePullRequestEventFile reads the event JSON from disk.
func ParsePullRequestEventFile(path string) (PullRequestPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return PullRequestPayload{}, fmt.Errorf("open event file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close event file: %v\n", closeErr)
		}
	}()

	return ParsePullRequestEvent(f)
}
