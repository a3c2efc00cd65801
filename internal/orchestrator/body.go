package orchestrator

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/rancher/backport-action/internal/event"
)

// DefaultBodyTemplate renders the cherry-pick pull request description.
const DefaultBodyTemplate = `{{metadata}}
This PR was automatically cherry-picked based on the following PR:
 - #{{number}}
{{conflicts}}{{body}}`

const (
	tagStart = "{{"
	tagEnd   = "}}"
)

// BodyData feeds the pull request body template.
type BodyData struct {
	Owner       string
	Repo        string
	PullRequest event.PullRequest
	Target      string
	Branch      string
	Conflicted  bool
	Submodule   string
}

// ValidateBodyTemplate reports malformed templates (for example an unclosed tag).
func ValidateBodyTemplate(tpl string) error {
	if _, err := fasttemplate.NewTemplate(tpl, tagStart, tagEnd); err != nil {
		return fmt.Errorf("parse pull request body template: %w", err)
	}
	return nil
}

// RenderBody expands tpl (DefaultBodyTemplate when empty). Unknown tags are kept verbatim.
func RenderBody(tpl string, data BodyData) (string, error) {
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultBodyTemplate
	}

	t, err := fasttemplate.NewTemplate(tpl, tagStart, tagEnd)
	if err != nil {
		return "", fmt.Errorf("parse pull request body template: %w", err)
	}

	values := map[string]string{
		"metadata":  metadataComment(data),
		"number":    strconv.Itoa(data.PullRequest.Number),
		"title":     data.PullRequest.Title,
		"author":    data.PullRequest.Author,
		"target":    data.Target,
		"branch":    data.Branch,
		"body":      descriptionBlock(data.PullRequest.Body),
		"conflicts": conflictBlock(data),
	}

	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		if v, ok := values[strings.TrimSpace(tag)]; ok {
			return w.Write([]byte(v))
		}
		return w.Write([]byte(tagStart + tag + tagEnd))
	}), nil
}

func descriptionBlock(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return "\nOriginal PR description:\n\n-----\n" + body
}

func conflictBlock(data BodyData) string {
	if !data.Conflicted {
		return ""
	}
	scope := ""
	if data.Submodule != "" {
		scope = fmt.Sprintf(" outside of submodule `%s`", data.Submodule)
	}
	return fmt.Sprintf("\n> [!WARNING]\n> The cherry-pick onto `%s` was committed with unresolved merge conflicts%s. Resolve them on `%s` before merging.\n",
		data.Target, scope, data.Branch)
}

func metadataComment(data BodyData) string {
	source := strings.TrimSpace(data.Repo)
	if owner := strings.TrimSpace(data.Owner); owner != "" && source != "" {
		source = owner + "/" + source
	} else if source == "" {
		source = "unknown-repo"
	}
	return fmt.Sprintf("<!-- cherry-pick-of: %s#%d -> %s -->", source, data.PullRequest.Number, data.Target)
}
