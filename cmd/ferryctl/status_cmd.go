package main

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

type statusOpts struct {
	*rootOpts
	output string
}

func newStatus(parent *rootOpts) *statusOpts {
	return &statusOpts{rootOpts: parent}
}

func (opts *statusOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <run-id>",
		Short: "Display the record of one run, stages and all",
		Example: makeExample(
			"ferryctl status 01234567-89ab-cdef-0123-456789abcdef --output=json",
		),
		RunE: opts.RunE,
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "yaml", `The format to output ("yaml" or "json")`)
	return cmd
}

func (opts *statusOpts) RunE(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return newUsageError("expected a single run ID argument")
	}

	var marshal func(interface{}) ([]byte, error)
	switch opts.output {
	case "yaml":
		marshal = yaml.Marshal
	case "json":
		marshal = func(v interface{}) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	default:
		return errors.New("unknown output format " + opts.output)
	}

	run, err := opts.API.RunStatus(context.Background(), args[0])
	if err != nil {
		return err
	}

	bytes, err := marshal(run)
	if err != nil {
		return errors.Wrap(err, "marshalling to output format "+opts.output)
	}
	cmd.OutOrStdout().Write(bytes)
	return nil
}
