package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

type runListOpts struct {
	*rootOpts
}

func newRunList(parent *rootOpts) *runListOpts {
	return &runListOpts{rootOpts: parent}
}

func (opts *runListOpts) Command() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List recent deploy runs",
		Example: makeExample(
			"ferryctl runs",
		),
		RunE: opts.RunE,
	}
}

func (opts *runListOpts) RunE(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return errorWantedNoArgs
	}
	runs, err := opts.API.ListRuns(context.Background())
	if err != nil {
		return err
	}

	out := newTabwriter()
	fmt.Fprintln(out, "RUN\tPIPELINE\tBRANCH\tSTATE\tSTARTED")
	for i := len(runs) - 1; i >= 0; i-- {
		r := runs[i]
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Pipeline, r.Branch, r.State, r.StartedAt.Format(time.RFC822))
	}
	out.Flush()
	return nil
}
