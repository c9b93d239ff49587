// pkg/registry/schema.go
package registry

// ToolCatalog documents every tool the orchestrator can run.
type ToolCatalog struct {
	Version     string      `json:"version"`
	LastUpdated string      `json:"lastUpdated"`
	Tools       []ToolEntry `json:"tools"`
}

type ToolEntry struct {
	ID                   string                 `json:"id"`
	DisplayName          string                 `json:"displayName"`
	Description          string                 `json:"description"`
	Backend              string                 `json:"backend"`
	CostClass            string                 `json:"costClass"`
	Version              string                 `json:"version"`
	ImplementationStatus string                 `json:"implementationStatus"`
	PayloadSchema        map[string]interface{} `json:"payloadSchema"`
	ErrorCodes           []string               `json:"errorCodes"`
	Timeout              string                 `json:"timeout"`
	Intents              []string               `json:"intents"`
	Tags                 []string               `json:"tags"`
}

// Implementation statuses accepted by Validate.
var implementationStatuses = map[string]bool{
	"planned":     true,
	"in-progress": true,
	"completed":   true,
	"verified":    true,
}

var costClasses = map[string]bool{
	"market_data": true,
	"database":    true,
	"search":      true,
	"generation":  true,
	"default":     true,
}
