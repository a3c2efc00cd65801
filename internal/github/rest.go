package gh

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	github "github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

const defaultUserAgent = "rancher-backport-action"

// NewRESTFactory returns a GitHub client factory backed by the go-github REST client. When
// base and upload URLs are provided, the factory targets a GitHub Enterprise instance.
func NewRESTFactory(baseURL, uploadURL string) Factory {
	return &restFactory{
		userAgent: defaultUserAgent,
		baseURL:   strings.TrimSpace(baseURL),
		uploadURL: strings.TrimSpace(uploadURL),
	}
}

type restFactory struct {
	userAgent string
	baseURL   string
	uploadURL string
}

type restClient struct {
	client *github.Client
}

func (f *restFactory) New(ctx context.Context, token string) (Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	client := github.NewClient(httpClient)

	base, upload, err := f.enterpriseURLs()
	if err != nil {
		return nil, err
	}
	if base != "" {
		if client, err = client.WithEnterpriseURLs(base, upload); err != nil {
			return nil, fmt.Errorf("construct enterprise github client: %w", err)
		}
	}

	if f.userAgent != "" {
		client.UserAgent = f.userAgent
	}
	return &restClient{client: client}, nil
}

// enterpriseURLs returns the normalized API and upload endpoints, or two empty
// strings for github.com.
func (f *restFactory) enterpriseURLs() (string, string, error) {
	switch {
	case f.baseURL == "" && f.uploadURL == "":
		return "", "", nil
	case f.baseURL == "":
		return "", "", fmt.Errorf("github upload url cannot be set without base url")
	case f.uploadURL == "":
		return "", "", fmt.Errorf("github upload url must be provided when base url is set")
	}

	base, err := normalizeGitHubURL(f.baseURL)
	if err != nil {
		return "", "", fmt.Errorf("parse github base url: %w", err)
	}
	upload, err := normalizeGitHubURL(f.uploadURL)
	if err != nil {
		return "", "", fmt.Errorf("parse github upload url: %w", err)
	}
	return base, upload, nil
}

func normalizeGitHubURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	switch {
	case parsed.Scheme == "":
		return "", fmt.Errorf("url must include scheme (e.g. https://)")
	case parsed.Host == "":
		return "", fmt.Errorf("url must include host")
	}

	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func (c *restClient) CreatePullRequest(ctx context.Context, owner, repo string, input CreatePROptions) (PullRequest, error) {
	pr, _, err := c.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title:               github.String(input.Title),
		Head:                github.String(input.Head),
		Base:                github.String(input.Base),
		Body:                github.String(input.Body),
		Draft:               github.Bool(input.Draft),
		MaintainerCanModify: github.Bool(input.MaintainerCanModify),
	})
	if err != nil {
		err = classifyGitHubError(err)
		return PullRequest{}, fmt.Errorf("create pull request: %w", err)
	}

	result := PullRequest{
		URL:    pr.GetHTMLURL(),
		Number: pr.GetNumber(),
	}
	if head := pr.GetHead(); head != nil {
		result.Head = head.GetRef()
	}
	if base := pr.GetBase(); base != nil {
		result.Base = base.GetRef()
	}

	return result, nil
}

func (c *restClient) AddLabels(ctx context.Context, owner, repo string, number int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	if _, _, err := c.client.Issues.AddLabelsToIssue(ctx, owner, repo, number, labels); err != nil {
		err = classifyGitHubError(err)
		return fmt.Errorf("add labels to pull request #%d: %w", number, err)
	}
	return nil
}

func (c *restClient) AddAssignees(ctx context.Context, owner, repo string, number int, assignees []string) error {
	if len(assignees) == 0 {
		return nil
	}
	if _, _, err := c.client.Issues.AddAssignees(ctx, owner, repo, number, assignees); err != nil {
		err = classifyGitHubError(err)
		return fmt.Errorf("add assignees to pull request #%d: %w", number, err)
	}
	return nil
}

func classifyGitHubError(err error) error {
	if err == nil {
		return nil
	}
	if isRetryableGitHubError(err) {
		return &retryableError{err: err}
	}
	return err
}

func isRetryableGitHubError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var acceptedErr *github.AcceptedError
	if errors.As(err, &acceptedErr) {
		return true
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		if respErr.Response != nil {
			code := respErr.Response.StatusCode
			if code == http.StatusTooManyRequests || (code >= 500 && code <= 599) {
				return true
			}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true
		}
	}

	return false
}
