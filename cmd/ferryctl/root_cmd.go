package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deployferry/ferry/pkg/api"
	transport "github.com/deployferry/ferry/pkg/http"
	"github.com/deployferry/ferry/pkg/http/client"
)

const (
	EnvVariableURL = "FERRY_URL"
)

type rootOpts struct {
	URL string
	API api.Server
}

func newRoot() *rootOpts {
	return &rootOpts{}
}

var rootLongHelp = strings.TrimSpace(`
ferryctl talks to the deploy daemon.

Workflow:
  ferryctl run --branch=main     # Deploy the main branch now.
  ferryctl runs                  # What has run, and how did it go?
  ferryctl status <run-id>       # Everything about one run.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ferryctl",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.PersistentFlags().StringVarP(&opts.URL, "url", "u", "http://localhost:3030/api/ferry",
		fmt.Sprintf("base URL of the ferryd API server; you can also set the environment variable %s", EnvVariableURL))

	cmd.AddCommand(
		newRun(opts).Command(),
		newRunList(opts).Command(),
		newStatus(opts).Command(),
		newPing(opts).Command(),
		newVersionCommand(),
	)

	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	url := os.Getenv(EnvVariableURL)
	if cmd.Flags().Changed("url") || url == "" {
		url = opts.URL
	}

	opts.API = client.New(http.DefaultClient, transport.NewAPIRouter(), url)
	return nil
}
