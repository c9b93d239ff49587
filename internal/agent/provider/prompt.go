package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"finance-agent/internal/common/logger"
	"finance-agent/internal/models"
)

// DegradationNotice is appended to answers built from incomplete data.
const DegradationNotice = "Note: some data sources were unavailable, so parts of this answer may be incomplete."

// BuildPrompt renders the question, the classified intent and the data each
// successful tool returned. A payload that cannot be encoded is logged and
// left out.
func BuildPrompt(question string, intent models.Intent, outcome models.Outcome, log logger.Logger) string {
	var parts []string

	parts = append(parts, "You are a financial research assistant. Answer the user's question based ONLY on the provided data.")
	parts = append(parts, fmt.Sprintf("\nUser Question: %s", question))
	parts = append(parts, fmt.Sprintf("Request type: %s", strings.ReplaceAll(string(intent.Kind), "_", " ")))
	if len(intent.Entities) > 0 {
		parts = append(parts, fmt.Sprintf("Tickers: %s", strings.Join(intent.Entities, ", ")))
	}

	if len(outcome.Succeeded) > 0 {
		parts = append(parts, "\nData:")
		for _, r := range outcome.Succeeded {
			payload, err := json.MarshalIndent(r.Payload, "", "  ")
			if err != nil {
				log.Warn("tool payload left out of prompt", map[string]interface{}{
					"tool":  r.Tool,
					"error": err.Error(),
				})
				continue
			}
			parts = append(parts, fmt.Sprintf("[%s]", r.Tool))
			parts = append(parts, string(payload))
		}
	}

	parts = append(parts, "\nInstructions:")
	parts = append(parts, "- Use figures from the data and state their date when known")
	parts = append(parts, "- If data is insufficient, say so clearly")
	parts = append(parts, "- Do not give personalized investment advice")
	parts = append(parts, "- Keep response concise and professional")
	if !outcome.IsReliable {
		parts = append(parts, "- Some data sources failed; mention that the answer may be incomplete")
	}

	parts = append(parts, "\nAnswer:")
	return strings.Join(parts, "\n")
}
