// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

func LoadCatalog(path string) (*ToolCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat ToolCatalog
	err = json.Unmarshal(data, &cat)
	return &cat, err
}

func (c *ToolCatalog) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *ToolCatalog) Find(id string) (*ToolEntry, bool) {
	for i := range c.Tools {
		if c.Tools[i].ID == id {
			return &c.Tools[i], true
		}
	}
	return nil, false
}

func (e ToolEntry) TimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(e.Timeout)
}

// Validate checks ids, statuses, cost classes, timeouts and that every payload
// schema compiles.
func (c *ToolCatalog) Validate() error {
	if len(c.Tools) == 0 {
		return fmt.Errorf("catalog contains no tools")
	}

	ids := make(map[string]bool)
	for _, tool := range c.Tools {
		if tool.ID == "" {
			return fmt.Errorf("tool missing required field: id")
		}
		if ids[tool.ID] {
			return fmt.Errorf("duplicate tool id: %s", tool.ID)
		}
		ids[tool.ID] = true

		if tool.DisplayName == "" {
			return fmt.Errorf("tool %s missing required field: displayName", tool.ID)
		}
		if !implementationStatuses[tool.ImplementationStatus] {
			return fmt.Errorf("tool %s has invalid implementationStatus: %q", tool.ID, tool.ImplementationStatus)
		}
		if !costClasses[tool.CostClass] {
			return fmt.Errorf("tool %s has unknown costClass: %q", tool.ID, tool.CostClass)
		}
		d, err := tool.TimeoutDuration()
		if err != nil || d <= 0 {
			return fmt.Errorf("tool %s has invalid timeout: %q", tool.ID, tool.Timeout)
		}
		if tool.PayloadSchema != nil {
			if _, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.PayloadSchema)); err != nil {
				return fmt.Errorf("tool %s payload schema: %w", tool.ID, err)
			}
		}
	}
	return nil
}

// PayloadValidator checks tool payloads against the catalog schemas.
type PayloadValidator struct {
	schemas map[string]*gojsonschema.Schema
}

func NewPayloadValidator(c *ToolCatalog) (*PayloadValidator, error) {
	v := &PayloadValidator{schemas: make(map[string]*gojsonschema.Schema)}
	for _, tool := range c.Tools {
		if tool.PayloadSchema == nil {
			continue
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.PayloadSchema))
		if err != nil {
			return nil, fmt.Errorf("tool %s payload schema: %w", tool.ID, err)
		}
		v.schemas[tool.ID] = schema
	}
	return v, nil
}

// ValidatePayload accepts payloads of tools without a schema.
func (v *PayloadValidator) ValidatePayload(tool string, payload map[string]interface{}) error {
	schema, ok := v.schemas[tool]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return fmt.Errorf("validate %s payload: %w", tool, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("invalid %s payload: %s", tool, strings.Join(msgs, "; "))
}
