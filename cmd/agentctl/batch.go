package main

import (
	"fmt"
	"net/url"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"finance-agent/internal/models"
)

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Start and poll multi-entity analyses",
	}
	cmd.AddCommand(newBatchStartCmd(), newBatchStatusCmd())
	return cmd
}

func newBatchStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start <ticker>...",
		Short:   "Start a batch analysis",
		Example: `  agentctl batch start AAPL MSFT NVDA --notify`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, _ := cmd.Flags().GetString("caller")
			question, _ := cmd.Flags().GetString("question")
			notify, _ := cmd.Flags().GetBool("notify")
			wait, _ := cmd.Flags().GetBool("wait")

			var started models.BatchStartResponse
			err := apiClient(cmd).PostJSON(cmd.Context(), "/v1/batch", models.BatchRequest{
				Entities: args,
				Question: question,
				CallerID: caller,
				Notify:   notify,
			}, &started)
			if err != nil {
				return fmt.Errorf("batch start failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started job %s (%d entities)\n", started.JobID, started.TotalCount)

			if !wait {
				return nil
			}
			interval, _ := cmd.Flags().GetDuration("interval")
			for {
				job, err := fetchJob(cmd, started.JobID)
				if err != nil {
					return err
				}
				if job.Finished() {
					printJob(cmd, job)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %d/%d done, %d failed\n", job.Completed+job.Failed, job.Total, job.Failed)
				select {
				case <-time.After(interval):
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				}
			}
		},
	}
	cmd.Flags().String("question", "", "question asked for every ticker (default \"Analyse\")")
	cmd.Flags().Bool("notify", false, "send a notification when the job finishes")
	cmd.Flags().Bool("wait", false, "poll until the job finishes")
	cmd.Flags().Duration("interval", 2*time.Second, "poll interval with --wait")
	return cmd
}

func newBatchStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobId>",
		Short: "Show the progress of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := fetchJob(cmd, args[0])
			if err != nil {
				return err
			}
			printJob(cmd, job)
			return nil
		},
	}
}

func fetchJob(cmd *cobra.Command, id string) (models.BatchJob, error) {
	var job models.BatchJob
	if err := apiClient(cmd).GetJSON(cmd.Context(), "/v1/batch/"+url.PathEscape(id), nil, &job); err != nil {
		return job, fmt.Errorf("batch status failed: %w", err)
	}
	return job, nil
}

func printJob(cmd *cobra.Command, job models.BatchJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job %s: %s (%d completed, %d failed, %d total)\n", job.ID, job.Status, job.Completed, job.Failed, job.Total)
	if job.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", job.Error)
	}
	if len(job.Results) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tOK\tRELIABLE\tCACHED\tDETAIL")
	for _, r := range job.Results {
		detail := r.Error
		if r.Success {
			detail = firstLine(r.Answer)
		}
		fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%s\n", r.Entity, r.Success, r.IsReliable, r.Cached, detail)
	}
	w.Flush()
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
