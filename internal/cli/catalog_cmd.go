package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/soyeahso/chevai-chat/internal/domain"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the product catalog used by the assistant",
	}

	cmd.AddCommand(newCatalogImportCmd())
	cmd.AddCommand(newCatalogTypesCmd())
	return cmd
}

// readCatalogFile parses a list of products from a .json, .yaml or .yml file.
func readCatalogFile(path string) ([]domain.CatalogItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var items []domain.CatalogItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &items)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		return nil, fmt.Errorf("unsupported catalog file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return items, nil
}

func newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Insert or replace products from a JSON or YAML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readCatalogFile(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Driver == "memory" {
				return fmt.Errorf("store.driver is memory, nothing would be kept")
			}
			be, err := openBackend(cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			ctx := context.Background()
			for _, item := range items {
				if err := be.products.Upsert(ctx, item); err != nil {
					return fmt.Errorf("importing %q: %w", item.ID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d product(s)\n", len(items))
			return nil
		},
	}
}

func newCatalogTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the distinct product types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			be, err := openBackend(cfg, log)
			if err != nil {
				return err
			}
			defer be.Close()

			types, err := be.products.DistinctTypes(context.Background())
			if err != nil {
				return err
			}
			for _, t := range types {
				marker := ""
				if domain.IsBottomWear(t) {
					marker = "  (bottom-wear)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", t, marker)
			}
			return nil
		},
	}
}
