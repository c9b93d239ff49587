package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"finance-agent/internal/models"
)

func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the agent a question",
		Example: `  agentctl ask "Analyse AAPL" --caller desk-1
  agentctl ask "and its news?" --tickers AAPL`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, _ := cmd.Flags().GetString("caller")
			tickers, _ := cmd.Flags().GetStringSlice("tickers")
			asJSON, _ := cmd.Flags().GetBool("json")

			req := models.AskRequest{Text: strings.Join(args, " "), CallerID: caller}
			if len(tickers) > 0 {
				req.Conversation = &models.ConversationContext{Tickers: tickers}
			}

			var resp models.AskResponse
			if err := apiClient(cmd).PostJSON(cmd.Context(), "/v1/ask", req, &resp); err != nil {
				return fmt.Errorf("ask failed: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			fmt.Fprintln(out, resp.Answer)
			if resp.NeedsClarification {
				for _, q := range resp.ClarificationQuestions {
					fmt.Fprintf(out, "  ? %s\n", q)
				}
				return nil
			}
			fmt.Fprintf(out, "\nintent=%s confidence=%.2f reliable=%t cached=%t provider=%s tools=%s\n",
				resp.Intent, resp.Confidence, resp.IsReliable, resp.Cached, resp.ProviderUsed, strings.Join(resp.ToolsUsed, ","))
			return nil
		},
	}
	cmd.Flags().StringSlice("tickers", nil, "tickers from earlier turns of the conversation")
	cmd.Flags().Bool("json", false, "print the raw JSON response")
	return cmd
}
