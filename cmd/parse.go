package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sciworks/appreg/internal/fetch"
	"github.com/sciworks/appreg/internal/release"
	"github.com/sciworks/appreg/internal/scan"
)

var parseCmd = &cobra.Command{
	Use:   "parse <url>",
	Short: "Scan one app source for metadata and environment",
	Long: `Parse fetches a single app source and prints the metadata and python
requirements found in its setup.cfg / requirements.txt as JSON. Git sources
accept an "@rev" suffix selecting the commit to scan; without one the current
branch is scanned.

Examples:
  appreg parse 'git+https://github.com/acme/app.git@v1.0.0'
  appreg parse ./local-app`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// parseOutput is the JSON shape printed by the parse command.
type parseOutput struct {
	Metadata    *scan.Metadata   `json:"metadata"`
	Environment scan.Environment `json:"environment"`
}

func runParse(cmd *cobra.Command, args []string) error {
	base, rawLine, hasLine, err := release.SplitURL(args[0])
	if err != nil {
		return err
	}

	fetcher, err := fetch.New()
	if err != nil {
		return err
	}
	defer func() { _ = fetcher.Close() }()

	snap, err := fetcher.Fetch(cmd.Context(), base)
	if err != nil {
		return err
	}

	var result scan.Result
	if snap.Repo == nil {
		if hasLine {
			return fmt.Errorf("%s is a plain directory, it has no revisions", base)
		}
		result, err = scan.Dir(snap.Dir)
	} else {
		rev := ""
		if hasLine {
			rev = release.ParseLine(rawLine).Rev
		}
		if rev == "" {
			if rev, err = snap.Repo.CurrentBranch(); err != nil {
				return fmt.Errorf("no revision given and %w", err)
			}
		}
		ref, refErr := snap.Repo.ResolveRev(rev)
		if refErr != nil {
			return fmt.Errorf("resolving %q: %w", rev, refErr)
		}
		result, err = scan.Commit(snap.Repo, ref.Commit)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(parseOutput{Metadata: result.Metadata, Environment: result.Environment})
}
