package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/tracing"
)

// HTMLBuilder renders the registry website into a directory.
type HTMLBuilder interface {
	Build(outDir string, index *Index, apps map[string]*App) ([]string, error)
}

// BuildOptions configures a full registry build.
type BuildOptions struct {
	AppsPath       string // apps.yaml
	CategoriesPath string // categories.yaml
	OutDir         string // build root, recreated on every build
	APIPath        string // api tree, relative to OutDir; empty disables
	HTMLPath       string // website tree, relative to OutDir; empty disables
	ValidateInput  bool
	ValidateOutput bool
}

// Build runs the whole pipeline: load and validate the registry data,
// resolve and scan all apps, then emit the api tree and the website.
func Build(ctx context.Context, fetcher SnapshotFetcher, html HTMLBuilder, opts BuildOptions) error {
	ctx, span := tracing.Start(ctx, "registry.build")
	defer span.End()
	span.SetAttributes(attribute.String("out_dir", opts.OutDir))

	schemas, err := LoadSchemas()
	if err != nil {
		return err
	}

	data, err := LoadData(opts.AppsPath, opts.CategoriesPath)
	if err != nil {
		return err
	}

	if opts.ValidateInput {
		if err := ValidateDocument(schemas.Apps, data.Apps); err != nil {
			return fmt.Errorf("apps data: %w", err)
		}
		if err := ValidateDocument(schemas.Categories, data.Categories); err != nil {
			return fmt.Errorf("categories data: %w", err)
		}
	}

	index, apps, err := NewBuilder(fetcher).GenerateIndex(ctx, data)
	if err != nil {
		return err
	}

	// Previous build output is discarded wholesale; every build starts from
	// the registry data alone.
	if err := os.RemoveAll(opts.OutDir); err != nil {
		return fmt.Errorf("cleaning output directory: %w", err)
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	log.Info(log.CatRegistry, "building registry", "out", opts.OutDir, "apps", len(apps))

	if opts.HTMLPath != "" && html != nil {
		written, err := html.Build(filepath.Join(opts.OutDir, opts.HTMLPath), index, apps)
		if err != nil {
			return fmt.Errorf("building website: %w", err)
		}
		logWritten(opts.OutDir, written)
	}

	if opts.APIPath != "" {
		apiDir := filepath.Join(opts.OutDir, opts.APIPath)
		written, err := BuildAPIv1(apiDir, index, apps)
		if err != nil {
			return fmt.Errorf("building api: %w", err)
		}
		logWritten(opts.OutDir, written)

		if opts.ValidateOutput {
			if err := ValidateAPIv1(apiDir, schemas); err != nil {
				return fmt.Errorf("validating api: %w", err)
			}
		}
	}

	return nil
}

func logWritten(baseDir string, paths []string) {
	for _, path := range paths {
		if rel, err := filepath.Rel(baseDir, path); err == nil {
			path = rel
		}
		log.Debug(log.CatRegistry, "wrote", "file", path)
	}
}
