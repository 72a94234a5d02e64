package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sciworks/appreg/internal/scan"
)

func demoIndexAndApps() (*Index, map[string]*App) {
	md := &scan.Metadata{
		Title:       "Demo",
		Description: "A demo app.",
		State:       "stable",
		Categories:  []string{"quantum"},
	}
	apps := map[string]*App{
		"demo-app": {
			Name:     "demo-app",
			Metadata: md,
			Releases: map[string]Release{
				"v1.0.0": {
					URL:      "git+https://example.com/demo.git@abc1234",
					Metadata: md,
					Environment: scan.Environment{
						PythonRequirements: []string{"aiida-core~=2.0"},
					},
				},
			},
		},
	}
	index := &Index{
		Apps: map[string]IndexEntry{
			"demo-app": {Name: "demo-app", Categories: []string{"quantum"}},
		},
		Categories: map[string]Category{
			"quantum": {Title: "Quantum"},
		},
	}
	return index, apps
}

func TestBuildAPIv1_WritesTree(t *testing.T) {
	apiPath := filepath.Join(t.TempDir(), "api", "v1")
	index, apps := demoIndexAndApps()

	written, err := BuildAPIv1(apiPath, index, apps)
	require.NoError(t, err)
	require.Len(t, written, 2)

	content, err := os.ReadFile(filepath.Join(apiPath, "apps_index.json"))
	require.NoError(t, err)
	var gotIndex Index
	require.NoError(t, json.Unmarshal(content, &gotIndex))
	require.Equal(t, *index, gotIndex)

	content, err = os.ReadFile(filepath.Join(apiPath, "apps", "demo-app.json"))
	require.NoError(t, err)
	var gotApp App
	require.NoError(t, json.Unmarshal(content, &gotApp))
	require.Equal(t, apps["demo-app"], &gotApp)
}

func TestValidateAPIv1(t *testing.T) {
	apiPath := filepath.Join(t.TempDir(), "api", "v1")
	index, apps := demoIndexAndApps()

	_, err := BuildAPIv1(apiPath, index, apps)
	require.NoError(t, err)

	schemas, err := LoadSchemas()
	require.NoError(t, err)
	require.NoError(t, ValidateAPIv1(apiPath, schemas))
}

func TestValidateAPIv1_UnknownCategory(t *testing.T) {
	apiPath := filepath.Join(t.TempDir(), "api", "v1")
	index, apps := demoIndexAndApps()
	index.Categories = map[string]Category{} // quantum is gone

	_, err := BuildAPIv1(apiPath, index, apps)
	require.NoError(t, err)

	schemas, err := LoadSchemas()
	require.NoError(t, err)

	err = ValidateAPIv1(apiPath, schemas)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown category")
}
