package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rancher/backport-action/internal/labels"
	"github.com/rancher/backport-action/internal/orchestrator"
)

const (
	// EnvPrefix namespaces action inputs (INPUT_TARGET_BRANCH, ...).
	EnvPrefix = "INPUT"

	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultGitUserName      = "GitHub Actions"
	defaultGitUserEmail     = "41898282+github-actions[bot]@users.noreply.github.com"
	defaultWorkingDirectory = "."
)

// Input keys. Flags use the same names; the environment uses INPUT_<KEY> with
// dashes replaced by underscores.
const (
	keyTargetBranch     = "target-branch"
	keySubmoduleName    = "submodule-name"
	keyTitleSuffix      = "pr-title-suffix"
	keyAssignee         = "pr-assignee"
	keyLabels           = "pr-labels"
	keyBodyTemplate     = "pr-body-template"
	keyGitHubToken      = "github-token"
	keyGitHubBaseURL    = "github-base-url"
	keyGitHubUploadURL  = "github-upload-url"
	keyGitUserName      = "git-user-name"
	keyGitUserEmail     = "git-user-email"
	keyWorkingDirectory = "working-directory"
	keyDryRun           = "dry-run"
	keyLogLevel         = "log-level"
	keyLogFormat        = "log-format"
	keyVerbose          = "verbose"
)

var inputKeys = []string{
	keyTargetBranch, keySubmoduleName, keyTitleSuffix, keyAssignee, keyLabels,
	keyBodyTemplate, keyGitHubToken, keyGitHubBaseURL, keyGitHubUploadURL,
	keyGitUserName, keyGitUserEmail, keyWorkingDirectory, keyDryRun,
	keyLogLevel, keyLogFormat, keyVerbose,
}

func inputEnvNames(key string) []string {
	upper := strings.ToUpper(key)
	return []string{
		EnvPrefix + "_" + strings.ReplaceAll(upper, "-", "_"),
		EnvPrefix + "_" + upper,
	}
}

// Config captures runtime options sourced from GitHub Action inputs, environment
// variables or command line flags.
type Config struct {
	TargetBranch     string
	SubmoduleName    string
	TitleSuffix      string
	Assignee         string
	Labels           []string
	BodyTemplate     string
	GitHubToken      string
	GitHubBaseURL    string
	GitHubUploadURL  string
	GitUserName      string
	GitUserEmail     string
	WorkingDirectory string
	DryRun           bool
	Verbose          bool
	LogLevel         string
	LogFormat        string
}

// RegisterFlags declares every input on fs so LoadConfig can pick them up.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(keyTargetBranch, "", "branch the merged pull request is cherry-picked onto")
	fs.String(keySubmoduleName, "", "submodule path to fast-forward to the target branch before cherry-picking")
	fs.String(keyTitleSuffix, orchestrator.DefaultTitleSuffix, "suffix appended to the cherry-pick pull request title")
	fs.String(keyAssignee, "", "assignee for the cherry-pick pull request (defaults to the source assignee)")
	fs.String(keyLabels, "", "comma separated labels added on top of the inherited ones")
	fs.String(keyBodyTemplate, "", "template for the cherry-pick pull request body")
	fs.String(keyGitHubToken, "", "GitHub token (falls back to GITHUB_TOKEN)")
	fs.String(keyGitHubBaseURL, "", "GitHub Enterprise API base URL")
	fs.String(keyGitHubUploadURL, "", "GitHub Enterprise upload URL")
	fs.String(keyGitUserName, defaultGitUserName, "committer name")
	fs.String(keyGitUserEmail, defaultGitUserEmail, "committer email")
	fs.String(keyWorkingDirectory, defaultWorkingDirectory, "repository checkout to operate on")
	fs.Bool(keyDryRun, false, "detect changes and log the plan without touching the repository")
	fs.String(keyLogLevel, defaultLogLevel, "log level (debug, info, warn, error)")
	fs.String(keyLogFormat, defaultLogFormat, "log format (text, json)")
	fs.Bool(keyVerbose, false, "shortcut for --log-level=debug")
}

// LoadConfig reads action inputs from the environment and the optional flag set,
// applies defaults, and performs validation. Explicitly set flags win over the
// environment.
func LoadConfig(flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// The runner exports action inputs verbatim (INPUT_TARGET-BRANCH), shells
	// usually cannot, so both spellings are accepted.
	for _, key := range inputKeys {
		names := inputEnvNames(key)
		if key == keyGitHubToken {
			names = append(names, "INPUT_PR-CREATOR-TOKEN", "INPUT_PR_CREATOR_TOKEN", "GITHUB_TOKEN")
		}
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	v.SetDefault(keyTitleSuffix, orchestrator.DefaultTitleSuffix)
	v.SetDefault(keyGitUserName, defaultGitUserName)
	v.SetDefault(keyGitUserEmail, defaultGitUserEmail)
	v.SetDefault(keyWorkingDirectory, defaultWorkingDirectory)
	v.SetDefault(keyLogLevel, defaultLogLevel)
	v.SetDefault(keyLogFormat, defaultLogFormat)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	str := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	cfg := Config{
		TargetBranch:     labels.NormalizeBranch(str(keyTargetBranch)),
		SubmoduleName:    strings.Trim(str(keySubmoduleName), "/"),
		TitleSuffix:      str(keyTitleSuffix),
		Assignee:         strings.TrimPrefix(str(keyAssignee), "@"),
		Labels:           labels.ParseList(str(keyLabels)),
		BodyTemplate:     v.GetString(keyBodyTemplate),
		GitHubToken:      str(keyGitHubToken),
		GitHubBaseURL:    str(keyGitHubBaseURL),
		GitHubUploadURL:  str(keyGitHubUploadURL),
		GitUserName:      str(keyGitUserName),
		GitUserEmail:     str(keyGitUserEmail),
		WorkingDirectory: str(keyWorkingDirectory),
		LogLevel:         strings.ToLower(str(keyLogLevel)),
		LogFormat:        strings.ToLower(str(keyLogFormat)),
	}

	var err error
	if cfg.DryRun, err = parseBool(keyDryRun, str(keyDryRun)); err != nil {
		return Config{}, err
	}
	if cfg.Verbose, err = parseBool(keyVerbose, str(keyVerbose)); err != nil {
		return Config{}, err
	}

	if cfg.TargetBranch == "" {
		return Config{}, fmt.Errorf("target branch is required (set INPUT_TARGET_BRANCH or --%s)", keyTargetBranch)
	}
	if err := labels.ValidateBranch(cfg.TargetBranch); err != nil {
		return Config{}, fmt.Errorf("target branch: %w", err)
	}

	if cfg.GitHubToken == "" && !cfg.DryRun {
		return Config{}, fmt.Errorf("github token is required (set INPUT_GITHUB_TOKEN or GITHUB_TOKEN)")
	}

	if (cfg.GitHubBaseURL == "") != (cfg.GitHubUploadURL == "") {
		return Config{}, fmt.Errorf("INPUT_GITHUB_BASE_URL and INPUT_GITHUB_UPLOAD_URL must both be set for GitHub Enterprise")
	}

	if cfg.GitUserName == "" {
		cfg.GitUserName = defaultGitUserName
	}

	if cfg.GitUserEmail == "" {
		cfg.GitUserEmail = defaultGitUserEmail
	}

	if cfg.WorkingDirectory == "" {
		cfg.WorkingDirectory = defaultWorkingDirectory
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = defaultLogFormat
	}

	supportedFormats := map[string]struct{}{"text": {}, "json": {}}
	if _, ok := supportedFormats[cfg.LogFormat]; !ok {
		return Config{}, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	if err := orchestrator.ValidateBodyTemplate(cfg.BodyTemplate); err != nil {
		return Config{}, err
	}

	if cfg.Verbose {
		cfg.LogLevel = "debug"
	}

	return cfg, nil
}

// OrchestratorConfig maps the inputs onto the orchestrator's run configuration.
func (c Config) OrchestratorConfig() orchestrator.Config {
	return orchestrator.Config{
		TargetBranch:  c.TargetBranch,
		SubmoduleName: c.SubmoduleName,
		TitleSuffix:   c.TitleSuffix,
		Assignee:      c.Assignee,
		ExtraLabels:   c.Labels,
		BodyTemplate:  c.BodyTemplate,
		DryRun:        c.DryRun,
		GitUserName:   c.GitUserName,
		GitUserEmail:  c.GitUserEmail,
	}
}

func parseBool(key, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", inputEnvNames(key)[0], err)
	}
	return b, nil
}
