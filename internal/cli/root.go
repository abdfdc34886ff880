// Package cli implements cachectl, the operator command line for a
// running server.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/utils"
)

type rootOptions struct {
	server  string
	timeout time.Duration
}

func (o *rootOptions) client() *Client {
	return NewClient(o.server, &http.Client{Timeout: o.timeout})
}

// NewRootCmd builds the cachectl command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "cachectl",
		Short: "Inspect and manage the collection cache of a running server",
		Long: `cachectl talks to the HTTP API of a running server.

It reads cache and performance statistics, invalidates cached collections
by tag, purges expired entries and fetches collection pages.`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&opts.server, "server",
		utils.GetEnvAsString("CACHECTL_SERVER", "http://localhost:8000"), "server base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(
		newStatsCmd(opts),
		newInvalidateCmd(opts),
		newCleanupCmd(opts),
		newMetricsCmd(opts),
		newPageCmd(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printJSON writes raw as indented JSON.
func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
