// Package main is the agentctl CLI: ask questions, drive batches and maintain the tool catalog.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	httpclient "finance-agent/internal/common/http"
)

// version is set at build time via ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Command-line client for the finance agent",
		Long: `agentctl talks to a running agent-server over HTTP. It can ask a question,
start and poll batch analyses, and validate or edit the tool catalog.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv("AGENT_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	root.PersistentFlags().String("server", server, "agent-server base URL (env AGENT_SERVER)")
	root.PersistentFlags().Duration("timeout", 60*time.Second, "request timeout")
	root.PersistentFlags().String("caller", "", "caller id sent as X-Caller-ID")

	root.AddCommand(newAskCmd(), newBatchCmd(), newCatalogCmd())
	return root
}

// apiClient builds an HTTP client from the persistent flags.
func apiClient(cmd *cobra.Command) *httpclient.Client {
	server, _ := cmd.Flags().GetString("server")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	caller, _ := cmd.Flags().GetString("caller")
	return httpclient.NewClient(server, timeout,
		httpclient.WithMaxRetries(0),
		httpclient.WithHeader("X-Caller-ID", caller),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
