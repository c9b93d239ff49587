package registry

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadShipped(t *testing.T) *ToolCatalog {
	t.Helper()
	cat, err := LoadCatalog(filepath.Join("..", "..", "configs", "tool-catalog.json"))
	require.NoError(t, err)
	return cat
}

func TestShippedCatalogIsValid(t *testing.T) {
	cat := loadShipped(t)
	require.NoError(t, cat.Validate())
	assert.Len(t, cat.Tools, 8)

	quote, ok := cat.Find("stock-quote")
	require.True(t, ok)
	d, err := quote.TimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)
}

func TestValidate_Rejects(t *testing.T) {
	valid := func() ToolEntry {
		return ToolEntry{
			ID:                   "stock-quote",
			DisplayName:          "Stock Quote",
			CostClass:            "market_data",
			ImplementationStatus: "verified",
			Timeout:              "3s",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *ToolCatalog)
		wantErr string
	}{
		{"empty", func(c *ToolCatalog) { c.Tools = nil }, "no tools"},
		{"duplicate", func(c *ToolCatalog) { c.Tools = append(c.Tools, valid()) }, "duplicate"},
		{"missing id", func(c *ToolCatalog) { c.Tools[0].ID = "" }, "id"},
		{"bad status", func(c *ToolCatalog) { c.Tools[0].ImplementationStatus = "done" }, "implementationStatus"},
		{"bad class", func(c *ToolCatalog) { c.Tools[0].CostClass = "gpu" }, "costClass"},
		{"bad timeout", func(c *ToolCatalog) { c.Tools[0].Timeout = "soon" }, "timeout"},
		{"bad schema", func(c *ToolCatalog) {
			c.Tools[0].PayloadSchema = map[string]interface{}{"type": "nonsense"}
		}, "payload schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &ToolCatalog{Tools: []ToolEntry{valid()}}
			tt.mutate(cat)
			err := cat.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	cat := loadShipped(t)
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, cat.Save(path))

	again, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, cat.Version, again.Version)
	assert.Len(t, again.Tools, len(cat.Tools))
}

// ==========================
// Payload validation
// ==========================

func TestPayloadValidator(t *testing.T) {
	v, err := NewPayloadValidator(loadShipped(t))
	require.NoError(t, err)

	assert.NoError(t, v.ValidatePayload("stock-quote", map[string]interface{}{"ticker": "AAPL", "price": 187.2}))

	err = v.ValidatePayload("stock-quote", map[string]interface{}{"ticker": "AAPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "price")

	err = v.ValidatePayload("company-news", map[string]interface{}{"articles": []interface{}{}, "total": "3"})
	require.Error(t, err)

	assert.NoError(t, v.ValidatePayload("not-in-catalog", map[string]interface{}{}))
}
