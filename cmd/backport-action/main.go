package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rancher/backport-action/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Printf("backport action failed: %v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backport-action",
		Short: "Cherry-pick a merged pull request onto another branch and open a pull request for it",
		Long: `backport-action runs inside a pull_request workflow. It cherry-picks the merge
commit of the triggering pull request onto <head>-cherry-pick, based on the
target branch, optionally advancing a submodule first, pushes the branch and
opens a pull request carrying the original labels and assignee.

Every flag can also be set through the matching INPUT_* environment variable
(for example --target-branch and INPUT_TARGET_BRANCH).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}

			runner, err := app.NewRunner(cfg)
			if err != nil {
				return err
			}

			return runner.Run(cmd.Context())
		},
	}

	app.RegisterFlags(cmd.Flags())
	return cmd
}
