// Package website renders the registry website: one index page plus one page
// per app, generated from the same documents the api tree is built from.
// Templates ship embedded and can be overridden from a local directory.
package website

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/registry"
)

//go:embed templates/*.html
var builtinTemplates embed.FS

//go:embed static
var builtinStatic embed.FS

// Builder renders the website. The zero value uses the embedded templates
// and static files only.
type Builder struct {
	// TemplatesDir overrides embedded templates by file name.
	TemplatesDir string
	// StaticDir is an additional static tree copied over the embedded one.
	StaticDir string
}

type appPage struct {
	ID         string
	App        *registry.App
	Categories map[string]registry.Category
}

type indexPage struct {
	Apps       map[string]*registry.App
	Categories map[string]registry.Category
}

// Build renders the site into outDir and returns the written file paths.
func (b *Builder) Build(outDir string, index *registry.Index, apps map[string]*registry.App) ([]string, error) {
	tmpl, err := b.templates()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating website directory: %w", err)
	}

	written, err := b.copyStatic(outDir)
	if err != nil {
		return nil, err
	}

	for _, id := range sortedIDs(apps) {
		pageDir := filepath.Join(outDir, "apps", id)
		if err := os.MkdirAll(pageDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating app page directory: %w", err)
		}

		pagePath := filepath.Join(pageDir, "index.html")
		page := appPage{ID: id, App: apps[id], Categories: index.Categories}
		if err := renderTo(tmpl, "app_page.html", pagePath, page); err != nil {
			return nil, err
		}
		written = append(written, pagePath)
	}

	indexPath := filepath.Join(outDir, "index.html")
	page := indexPage{Apps: apps, Categories: index.Categories}
	if err := renderTo(tmpl, "index.html", indexPath, page); err != nil {
		return nil, err
	}
	written = append(written, indexPath)

	log.Info(log.CatWebsite, "website rendered", "dir", outDir, "apps", len(apps))
	return written, nil
}

func (b *Builder) templates() (*template.Template, error) {
	tmpl := template.New("website").Funcs(template.FuncMap{
		"sortedVersions": sortedVersions,
	})

	tmpl, err := tmpl.ParseFS(builtinTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded templates: %w", err)
	}

	// Local templates override embedded ones of the same name.
	if b.TemplatesDir != "" {
		tmpl, err = tmpl.ParseGlob(filepath.Join(b.TemplatesDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("parsing template overrides: %w", err)
		}
	}
	return tmpl, nil
}

func (b *Builder) copyStatic(outDir string) ([]string, error) {
	staticRoot, err := fs.Sub(builtinStatic, "static")
	if err != nil {
		return nil, err
	}
	written, err := copyFS(filepath.Join(outDir, "static"), staticRoot)
	if err != nil {
		return nil, fmt.Errorf("copying embedded static files: %w", err)
	}

	if b.StaticDir != "" {
		extra, err := copyFS(filepath.Join(outDir, "static"), os.DirFS(b.StaticDir))
		if err != nil {
			return nil, fmt.Errorf("copying static files: %w", err)
		}
		written = append(written, extra...)
	}
	return written, nil
}

func copyFS(dstRoot string, src fs.FS) ([]string, error) {
	var written []string
	err := fs.WalkDir(src, ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		dst := filepath.Join(dstRoot, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(dst, 0o755)
		}
		content, err := fs.ReadFile(src, path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, content, 0o644); err != nil {
			return err
		}
		written = append(written, dst)
		return nil
	})
	return written, err
}

func renderTo(tmpl *template.Template, name, path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.ExecuteTemplate(f, name, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return nil
}

func sortedIDs(apps map[string]*registry.App) []string {
	ids := make([]string, 0, len(apps))
	for id := range apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedVersions orders release versions newest first for display. Versions
// that do not parse as semantic versions sort last, lexically descending.
func sortedVersions(releases map[string]registry.Release) []string {
	versions := make([]string, 0, len(releases))
	for version := range releases {
		versions = append(versions, version)
	}

	sort.Slice(versions, func(i, j int) bool {
		vi, errI := semver.NewVersion(strings.TrimPrefix(versions[i], "v"))
		vj, errJ := semver.NewVersion(strings.TrimPrefix(versions[j], "v"))
		switch {
		case errI == nil && errJ == nil:
			if vi.Equal(vj) {
				return versions[i] > versions[j]
			}
			return vi.GreaterThan(vj)
		case errI == nil:
			return true
		case errJ == nil:
			return false
		default:
			return versions[i] > versions[j]
		}
	})
	return versions
}
