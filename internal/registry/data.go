// Package registry builds the app registry: it loads the apps and categories
// data, resolves and scans every app release, and emits the api/v1 tree plus
// the registry website.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sciworks/appreg/internal/release"
)

// AppData is one app entry of the apps.yaml file.
type AppData struct {
	Releases   []release.Specifier `yaml:"releases" json:"releases"`
	Metadata   map[string]any      `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Categories []string            `yaml:"categories,omitempty" json:"categories,omitempty"`
	Logo       string              `yaml:"logo,omitempty" json:"logo,omitempty"`
}

// Category is one entry of the categories.yaml file.
type Category struct {
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Data holds the parsed registry input files.
type Data struct {
	Apps       map[string]AppData  `json:"apps"`
	Categories map[string]Category `json:"categories"`
}

// LoadData reads and dereferences the apps and categories files.
func LoadData(appsPath, categoriesPath string) (*Data, error) {
	var data Data
	if err := loadYAML(appsPath, &data.Apps); err != nil {
		return nil, fmt.Errorf("loading apps data: %w", err)
	}
	if err := loadYAML(categoriesPath, &data.Categories); err != nil {
		return nil, fmt.Errorf("loading categories data: %w", err)
	}
	return &data, nil
}

// loadYAML deserializes the YAML file at path into out, dereferencing all
// local-file $ref objects first.
func loadYAML(path string, out any) error {
	raw, err := loadDereferenced(path)
	if err != nil {
		return err
	}

	// Round-trip through yaml to decode the dereferenced tree into the
	// typed structure.
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := yaml.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func loadDereferenced(path string) (any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return dereference(raw, filepath.Dir(path))
}

// dereference walks the tree and replaces every {"$ref": "file#/pointer"}
// object with the referenced content. References resolve against local YAML
// or JSON files relative to baseDir.
func dereference(node any, baseDir string) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok && len(v) == 1 {
			return resolveRef(ref, baseDir)
		}
		for key, child := range v {
			replaced, err := dereference(child, baseDir)
			if err != nil {
				return nil, err
			}
			v[key] = replaced
		}
		return v, nil
	case []any:
		for i, child := range v {
			replaced, err := dereference(child, baseDir)
			if err != nil {
				return nil, err
			}
			v[i] = replaced
		}
		return v, nil
	default:
		return node, nil
	}
}

func resolveRef(ref, baseDir string) (any, error) {
	file, fragment, _ := strings.Cut(ref, "#")
	if strings.Contains(file, "://") {
		return nil, fmt.Errorf("remote reference %q not supported", ref)
	}
	if file == "" {
		return nil, fmt.Errorf("reference %q must name a local file", ref)
	}

	target := file
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseDir, filepath.FromSlash(file))
	}

	resolved, err := loadDereferenced(target)
	if err != nil {
		return nil, fmt.Errorf("resolving reference %q: %w", ref, err)
	}

	return resolvePointer(resolved, fragment, ref)
}

// resolvePointer walks a JSON pointer fragment ("/a/b/0") through the tree.
func resolvePointer(node any, pointer, ref string) (any, error) {
	if pointer == "" || pointer == "/" {
		return node, nil
	}

	for _, token := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")

		switch v := node.(type) {
		case map[string]any:
			child, ok := v[token]
			if !ok {
				return nil, fmt.Errorf("reference %q: key %q not found", ref, token)
			}
			node = child
		case []any:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(v) {
				return nil, fmt.Errorf("reference %q: invalid index %q", ref, token)
			}
			node = v[i]
		default:
			return nil, fmt.Errorf("reference %q: cannot descend into %T", ref, node)
		}
	}
	return node, nil
}
