package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciworks/appreg/internal/fetch"
	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/release"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <specifier>...",
	Short: "Resolve release specifiers and print the resulting releases",
	Long: `Resolve fetches the repository behind each specifier, expands release
lines into concrete tagged commits, and prints the releases as JSON.

Examples:
  appreg resolve 'git+https://github.com/acme/app.git@v1.0.0'
  appreg resolve 'git+https://github.com/acme/app.git@main:v0.1.0..'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	fetcher, err := fetch.New()
	if err != nil {
		return err
	}
	defer func() { _ = fetcher.Close() }()

	specs := make([]release.Specifier, len(args))
	for i, arg := range args {
		specs[i] = release.Specifier{URL: arg}
	}

	// All specifiers must name the same repository; the first one decides.
	base, _, _, err := release.SplitURL(specs[0].URL)
	if err != nil {
		return err
	}

	snap, err := fetcher.Fetch(cmd.Context(), base)
	if err != nil {
		return err
	}
	if snap.Repo == nil {
		return fmt.Errorf("%s is not a git repository", base)
	}

	resolved, diags := release.Resolve(specs, snap.Repo)
	for _, diag := range diags {
		log.ErrorErr(log.CatResolve, "specifier failed", diag)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resolved); err != nil {
		return err
	}

	if len(diags) > 0 {
		return fmt.Errorf("%d of %d specifiers failed", len(diags), len(args))
	}
	return nil
}
