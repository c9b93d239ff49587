package batch

import (
	"fmt"
	"strings"

	"finance-agent/internal/models"
)

// NotificationFor renders the completion message for a finished job.
func NotificationFor(job models.BatchJob) models.Notification {
	subject := fmt.Sprintf("Batch analysis %s", job.Status)

	var b strings.Builder
	fmt.Fprintf(&b, "Job %s %s: %d of %d entities analysed, %d failed.\n", job.ID, job.Status, job.Completed, job.Total, job.Failed)
	if job.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", job.Error)
	}
	for _, r := range job.Results {
		if r.Success {
			fmt.Fprintf(&b, "- %s: ok", r.Entity)
			if !r.IsReliable {
				b.WriteString(" (partial data)")
			}
		} else {
			fmt.Fprintf(&b, "- %s: %s", r.Entity, r.Error)
		}
		b.WriteString("\n")
	}

	return models.Notification{
		JobID:   job.ID,
		Subject: subject,
		Body:    b.String(),
		Attrs: map[string]string{
			"status": string(job.Status),
			"total":  fmt.Sprint(job.Total),
		},
	}
}
