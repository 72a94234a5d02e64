package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sciworks/appreg/internal/fetch"
	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/registry"
	"github.com/sciworks/appreg/internal/tracing"
	"github.com/sciworks/appreg/internal/website"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the registry api tree and website",
	Long: `Build reads the apps and categories documents, resolves every app's
release specifiers against its git repository, scans each release for
metadata, and writes the api tree and the website into the output directory.

Per-release problems (bad specifiers, unknown refs, version collisions) are
logged and skipped; only structural problems abort the build.`,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().String("apps", "", "path to the apps document")
	buildCmd.Flags().String("categories", "", "path to the categories document")
	buildCmd.Flags().StringP("out", "o", "", "output directory")
	buildCmd.Flags().String("api-path", "", "api tree location relative to the output directory")
	buildCmd.Flags().String("html-path", "", "website location relative to the output directory")
	buildCmd.Flags().String("static", "", "extra static tree copied into the website")
	buildCmd.Flags().String("templates", "", "directory overriding the built-in templates")
	buildCmd.Flags().Bool("no-validate", false, "skip schema validation of inputs and outputs")

	_ = viper.BindPFlag("apps", buildCmd.Flags().Lookup("apps"))
	_ = viper.BindPFlag("categories", buildCmd.Flags().Lookup("categories"))
	_ = viper.BindPFlag("out", buildCmd.Flags().Lookup("out"))
	_ = viper.BindPFlag("api_path", buildCmd.Flags().Lookup("api-path"))
	_ = viper.BindPFlag("html_path", buildCmd.Flags().Lookup("html-path"))
	_ = viper.BindPFlag("static", buildCmd.Flags().Lookup("static"))
	_ = viper.BindPFlag("templates", buildCmd.Flags().Lookup("templates"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	noValidate, _ := cmd.Flags().GetBool("no-validate")

	start := time.Now()
	if err := buildRegistry(cmd.Context(), !noValidate); err != nil {
		return err
	}
	log.Info(log.CatRegistry, "build finished", "out", cfg.Out, "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// buildRegistry runs one full registry build with a fresh fetcher. Shared
// with the serve command's rebuild-on-change path.
func buildRegistry(ctx context.Context, validate bool) error {
	fetcher, err := fetch.New()
	if err != nil {
		return err
	}
	defer func() { _ = fetcher.Close() }()

	html := &website.Builder{
		TemplatesDir: cfg.Templates,
		StaticDir:    cfg.Static,
	}

	return registry.Build(ctx, fetcher, html, registry.BuildOptions{
		AppsPath:       cfg.Apps,
		CategoriesPath: cfg.Categories,
		OutDir:         cfg.Out,
		APIPath:        cfg.APIPath,
		HTMLPath:       cfg.HTMLPath,
		ValidateInput:  validate,
		ValidateOutput: validate,
	})
}
