package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deployferry/ferry/pkg/api"
)

type runOpts struct {
	*rootOpts
	pipeline string
	branch   string
}

func newRun(parent *rootOpts) *runOpts {
	return &runOpts{rootOpts: parent}
}

func (opts *runOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a deploy run",
		Example: makeExample(
			"ferryctl run --branch=main",
			"ferryctl run --branch=staging --pipeline=gated-deploy",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.pipeline, "pipeline", "p", "", "Pipeline to run; when given, its branch gate is bypassed. When empty, every pipeline gating the branch runs")
	cmd.Flags().StringVarP(&opts.branch, "branch", "b", "", "Branch to deploy")
	return cmd
}

func (opts *runOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if opts.branch == "" {
		return newUsageError("please supply --branch")
	}

	result, err := opts.API.TriggerRun(context.Background(), api.RunRequest{
		Pipeline: opts.pipeline,
		Branch:   opts.branch,
	})
	if err != nil {
		return err
	}
	if len(result.Jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no pipeline gates that branch; nothing queued")
		return nil
	}
	for _, id := range result.Jobs {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
