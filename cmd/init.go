package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sciworks/appreg/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file in the current directory",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := ".appreg/config.yaml"

	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", path)
	return nil
}
