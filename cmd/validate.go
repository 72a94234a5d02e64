package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciworks/appreg/internal/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the apps and categories documents against their schemas",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().String("apps", "", "path to the apps document")
	validateCmd.Flags().String("categories", "", "path to the categories document")
}

func runValidate(cmd *cobra.Command, args []string) error {
	appsPath := cfg.Apps
	if v, _ := cmd.Flags().GetString("apps"); v != "" {
		appsPath = v
	}
	categoriesPath := cfg.Categories
	if v, _ := cmd.Flags().GetString("categories"); v != "" {
		categoriesPath = v
	}

	schemas, err := registry.LoadSchemas()
	if err != nil {
		return err
	}

	data, err := registry.LoadData(appsPath, categoriesPath)
	if err != nil {
		return err
	}

	if err := registry.ValidateDocument(schemas.Apps, data.Apps); err != nil {
		return fmt.Errorf("%s: %w", appsPath, err)
	}
	if err := registry.ValidateDocument(schemas.Categories, data.Categories); err != nil {
		return fmt.Errorf("%s: %w", categoriesPath, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s and %s are valid\n", appsPath, categoriesPath)
	return nil
}
