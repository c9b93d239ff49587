package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"finance-agent/pkg/registry"
)

const defaultCatalogPath = "configs/tool-catalog.json"

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Validate, list and edit the tool catalog",
	}
	cmd.PersistentFlags().String("path", defaultCatalogPath, "path to the tool catalog")
	cmd.AddCommand(newCatalogValidateCmd(), newCatalogListCmd(), newCatalogUpdateCmd())
	return cmd
}

func loadCatalog(cmd *cobra.Command) (*registry.ToolCatalog, string, error) {
	path, _ := cmd.Flags().GetString("path")
	c, err := registry.LoadCatalog(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load catalog: %w", err)
	}
	return c, path, nil
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the catalog for missing fields, duplicates and bad schemas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("catalog validation failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Catalog validation passed. Found %d tools.\n", len(c.Tools))
			return nil
		},
	}
}

func newCatalogListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBACKEND\tCOST CLASS\tTIMEOUT\tSTATUS\tINTENTS")
			for _, t := range c.Tools {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", t.ID, t.Backend, t.CostClass, t.Timeout, t.ImplementationStatus, strings.Join(t.Intents, ","))
			}
			return w.Flush()
		},
	}
}

func newCatalogUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "update",
		Short:   "Change one field of a catalog entry",
		Example: `  agentctl catalog update --id company-news --field timeout --value 6s`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := cmd.Flags().GetString("id")
			field, _ := cmd.Flags().GetString("field")
			value, _ := cmd.Flags().GetString("value")

			c, path, err := loadCatalog(cmd)
			if err != nil {
				return err
			}
			if err := updateEntry(c, id, field, value); err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return fmt.Errorf("update rejected: %w", err)
			}
			c.LastUpdated = time.Now().Format(time.RFC3339)
			if err := c.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated tool %s, field %s to %s\n", id, field, value)
			return nil
		},
	}
	cmd.Flags().String("id", "", "tool id")
	cmd.Flags().String("field", "", "field to change (status, version, timeout, costClass, displayName, description)")
	cmd.Flags().String("value", "", "new value")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("field")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}

func updateEntry(c *registry.ToolCatalog, id, field, value string) error {
	entry, ok := c.Find(id)
	if !ok {
		return fmt.Errorf("tool with ID %s not found", id)
	}
	switch field {
	case "status":
		entry.ImplementationStatus = value
	case "version":
		entry.Version = value
	case "timeout":
		entry.Timeout = value
	case "costClass":
		entry.CostClass = value
	case "displayName":
		entry.DisplayName = value
	case "description":
		entry.Description = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	return nil
}
