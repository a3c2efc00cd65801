package orchestrator

const DefaultTitleSuffix = "[Cherry-Pick]"

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	TargetBranch  string
	SubmoduleName string
	TitleSuffix   string
	Assignee      string
	ExtraLabels   []string
	BodyTemplate  string
	DryRun        bool
	GitUserName   string
	GitUserEmail  string
}
