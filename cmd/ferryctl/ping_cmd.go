package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

type pingOpts struct {
	*rootOpts
}

func newPing(parent *rootOpts) *pingOpts {
	return &pingOpts{rootOpts: parent}
}

func (opts *pingOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the daemon",
		RunE:  opts.RunE,
	}
}

func (opts *pingOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	if err := opts.API.Ping(context.Background()); err != nil {
		return err
	}
	v, err := opts.API.Version(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok (ferryd %s)\n", v)
	return nil
}
