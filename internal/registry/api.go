package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sciworks/appreg/internal/log"
)

// BuildAPIv1 writes the v1 api tree: apps_index.json plus one document per
// app under apps/. Returns the written file paths.
func BuildAPIv1(apiPath string, index *Index, apps map[string]*App) ([]string, error) {
	if err := os.MkdirAll(filepath.Join(apiPath, "apps"), 0o755); err != nil {
		return nil, fmt.Errorf("creating api directory: %w", err)
	}

	var written []string

	indexPath := filepath.Join(apiPath, "apps_index.json")
	if err := writeJSON(indexPath, index); err != nil {
		return nil, err
	}
	written = append(written, indexPath)

	for id, app := range apps {
		appPath := filepath.Join(apiPath, "apps", id+".json")
		if err := writeJSON(appPath, app); err != nil {
			return nil, err
		}
		written = append(written, appPath)
	}

	return written, nil
}

// ValidateAPIv1 re-reads the emitted api tree and validates every document
// against its schema, plus the category cross-references of the index.
func ValidateAPIv1(apiPath string, schemas *Schemas) error {
	indexDoc, err := readJSON(filepath.Join(apiPath, "apps_index.json"))
	if err != nil {
		return err
	}
	if err := schemas.AppsIndex.Validate(indexDoc); err != nil {
		return fmt.Errorf("apps_index.json: %w", err)
	}

	index, ok := indexDoc.(map[string]any)
	if !ok {
		return fmt.Errorf("apps_index.json: unexpected document shape")
	}
	appsEntry, _ := index["apps"].(map[string]any)
	categories, _ := index["categories"].(map[string]any)

	for id, entry := range appsEntry {
		if e, ok := entry.(map[string]any); ok {
			if cats, ok := e["categories"].([]any); ok {
				for _, c := range cats {
					name, _ := c.(string)
					if _, known := categories[name]; !known {
						return fmt.Errorf("app %s references unknown category %q", id, name)
					}
				}
			}
		}

		appDoc, err := readJSON(filepath.Join(apiPath, "apps", id+".json"))
		if err != nil {
			return err
		}
		if err := schemas.App.Validate(appDoc); err != nil {
			return fmt.Errorf("apps/%s.json: %w", id, err)
		}
	}

	log.Info(log.CatSchema, "api tree validated", "path", apiPath, "apps", len(appsEntry))
	return nil
}

func writeJSON(path string, doc any) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc, nil
}
