package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sciworks/appreg/internal/scan"
)

func TestLoadSchemas(t *testing.T) {
	schemas, err := LoadSchemas()
	require.NoError(t, err)
	require.NotNil(t, schemas.App)
	require.NotNil(t, schemas.Apps)
	require.NotNil(t, schemas.AppsIndex)
	require.NotNil(t, schemas.Categories)
	require.NotNil(t, schemas.Environment)
	require.NotNil(t, schemas.Metadata)
}

func TestValidateDocument_Metadata(t *testing.T) {
	schemas, err := LoadSchemas()
	require.NoError(t, err)

	good := scan.Metadata{
		Title:       "Demo",
		Description: "A demo app.",
		State:       "stable",
		Categories:  []string{"quantum"},
	}
	require.NoError(t, ValidateDocument(schemas.Metadata, good))

	require.Error(t, ValidateDocument(schemas.Metadata, map[string]any{
		"title": "Demo",
		"state": "abandoned", // not a known state
	}))

	require.Error(t, ValidateDocument(schemas.Metadata, map[string]any{
		"title":   "Demo",
		"unknown": true,
	}))
}

func TestValidateDocument_AppsInput(t *testing.T) {
	schemas, err := LoadSchemas()
	require.NoError(t, err)

	apps := map[string]any{
		"demo-app": map[string]any{
			"releases": []any{
				"git+https://example.com/demo.git@main:",
				map[string]any{
					"url":     "git+https://example.com/demo.git@v1",
					"version": "1.0.0",
				},
			},
		},
	}
	require.NoError(t, ValidateDocument(schemas.Apps, apps))

	missingReleases := map[string]any{"demo-app": map[string]any{}}
	require.Error(t, ValidateDocument(schemas.Apps, missingReleases))
}

func TestValidateDocument_App(t *testing.T) {
	schemas, err := LoadSchemas()
	require.NoError(t, err)

	app := App{
		Name: "demo-app",
		Metadata: &scan.Metadata{
			Title:       "Demo",
			Description: "A demo app.",
		},
		Releases: map[string]Release{
			"v1.0.0": {
				URL:      "git+https://example.com/demo.git@abc1234",
				Metadata: &scan.Metadata{Title: "Demo", Description: "A demo app."},
			},
		},
		GitURL:   "https://example.com/demo.git#main",
		HostedOn: "example.com",
	}
	require.NoError(t, ValidateDocument(schemas.App, app))

	// A release without metadata must fail.
	app.Releases["v2"] = Release{URL: "git+https://example.com/demo.git@def5678"}
	require.Error(t, ValidateDocument(schemas.App, app))
}
