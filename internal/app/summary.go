package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/rancher/backport-action/internal/orchestrator"
)

func (r *Runner) writeStepSummary(result orchestrator.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	content := "## Backport summary\n\n" + renderResultDetails(r.cfg.TargetBranch, result)
	return appendFile(path, "step summary", content)
}

func (r *Runner) writeGitHubOutputs(result orchestrator.Result) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	changed := result.ChangedPaths
	if changed == nil {
		changed = []string{}
	}
	changedJSON, err := json.Marshal(changed)
	if err != nil {
		return fmt.Errorf("marshal changed-paths: %w", err)
	}

	var b strings.Builder
	writeOutput(&b, "skipped", strconv.FormatBool(result.Skipped))
	writeOutput(&b, "conflicted", strconv.FormatBool(result.Conflicted))
	if !result.Skipped {
		writeOutput(&b, "branch", result.Branch)
	}
	if pr := result.PullRequest; pr != nil && pr.Number > 0 {
		writeOutput(&b, "pr-number", strconv.Itoa(pr.Number))
		writeOutput(&b, "pr-url", pr.URL)
	}
	writeMultilineOutput(&b, "changed-paths", string(changedJSON))

	return appendFile(path, "github output", b.String())
}

func appendFile(path, what, content string) error {
	// GitHub Actions normally creates the directory already.
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create %s directory: %v\n", what, mkErr)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "failed to close %s file: %v\n", what, closeErr)
		}
	}()

	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

func renderResultDetails(target string, result orchestrator.Result) string {
	var builder strings.Builder

	if result.Skipped {
		reason := result.SkippedReason
		if reason == "" {
			reason = "run skipped"
		}
		builder.WriteString(fmt.Sprintf("Skipped cherry-pick: %s\n", sanitizeMarkdownCell(reason)))
		return builder.String()
	}

	status := "clean"
	if result.Conflicted {
		status = "committed with conflicts"
	}
	if result.DryRun {
		status = "dry run"
	}

	prCell := "-"
	if pr := result.PullRequest; pr != nil && pr.Number > 0 {
		if pr.URL != "" {
			prCell = fmt.Sprintf("[PR #%d](%s)", pr.Number, pr.URL)
		} else {
			prCell = fmt.Sprintf("PR #%d", pr.Number)
		}
	}

	builder.WriteString("| Target | Branch | Status | Changed files | PR |\n")
	builder.WriteString("| --- | --- | --- | --- | --- |\n")
	builder.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %s |\n",
		sanitizeMarkdownCell(target),
		sanitizeMarkdownCell(result.Branch),
		sanitizeMarkdownCell(status),
		len(result.ChangedPaths),
		sanitizeMarkdownCell(prCell),
	))

	if result.Conflicted {
		builder.WriteString("\n> [!WARNING]\n> Unresolved merge conflicts were committed. Resolve them on the cherry-pick branch before merging.\n")
	}

	return builder.String()
}

func writeOutput(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s=%s\n", key, value)
}

func writeMultilineOutput(w io.Writer, key, value string) {
	fmt.Fprintf(w, "%s<<EOF\n%s\nEOF\n", key, value)
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
