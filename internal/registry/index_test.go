package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sciworks/appreg/internal/fetch"
	"github.com/sciworks/appreg/internal/gitrepo"
	"github.com/sciworks/appreg/internal/release"
)

const demoURL = "git+https://example.com/acme/demo-app.git"

type fakeFetcher struct {
	snaps map[string]fetch.Snapshot
}

func (f fakeFetcher) Fetch(_ context.Context, url string) (fetch.Snapshot, error) {
	snap, ok := f.snaps[url]
	if !ok {
		return fetch.Snapshot{}, fmt.Errorf("unknown url %q", url)
	}
	return snap, nil
}

func setupCfg(title, description string) []byte {
	return []byte(fmt.Sprintf(`
[aiidalab]
title = %s
description = %s
categories =
    quantum
`, title, description))
}

// demoRepo has two tagged releases, v0.9.0 and v1.0.0.
func demoRepo() *gitrepo.MemRepository {
	return gitrepo.NewMemRepository("main").
		AddCommit("aaa1111").
		AddCommit("bbb2222", "aaa1111").
		SetBranch("main", "bbb2222").
		SetTag("v0.9.0", "aaa1111").
		SetTag("v1.0.0", "bbb2222").
		PutFile("aaa1111", "setup.cfg", setupCfg("Demo", "Old description.")).
		PutFile("bbb2222", "setup.cfg", setupCfg("Demo", "Current description.")).
		PutFile("bbb2222", "requirements.txt", []byte("aiida-core~=2.0\n"))
}

func demoFetcher() fakeFetcher {
	return fakeFetcher{snaps: map[string]fetch.Snapshot{
		demoURL: {Repo: demoRepo()},
	}}
}

func TestGenerateIndex_SingleApp(t *testing.T) {
	data := &Data{
		Apps: map[string]AppData{
			"demo-app": {Releases: []release.Specifier{{URL: demoURL + "@main:"}}},
		},
		Categories: map[string]Category{"quantum": {Title: "Quantum"}},
	}

	index, apps, err := NewBuilder(demoFetcher()).GenerateIndex(context.Background(), data)
	require.NoError(t, err)

	require.Len(t, apps, 1)
	app := apps["demo-app"]
	require.NotNil(t, app)
	require.Equal(t, "demo-app", app.Name)
	require.Len(t, app.Releases, 2)

	require.Equal(t, demoURL+"@aaa1111", app.Releases["v0.9.0"].URL)
	require.Equal(t, demoURL+"@bbb2222", app.Releases["v1.0.0"].URL)
	require.Equal(t, "Old description.", app.Releases["v0.9.0"].Metadata.Description)

	// The latest release's metadata is authoritative for the app.
	require.Equal(t, "Current description.", app.Metadata.Description)
	require.Equal(t, []string{"aiida-core~=2.0"},
		app.Releases["v1.0.0"].Environment.PythonRequirements)

	// Metainfo defaults and derived fields.
	require.Equal(t, "registered", app.Metadata.State)
	require.Equal(t, "acme", app.Metadata.Authors)
	require.Equal(t, "https://example.com/acme/demo-app.git#main", app.GitURL)
	require.Equal(t, "example.com", app.HostedOn)

	require.Equal(t, IndexEntry{Name: "demo-app", Categories: []string{"quantum"}},
		index.Apps["demo-app"])
	require.Contains(t, index.Categories, "quantum")
}

func TestGenerateIndex_DropsAppsWithoutReleases(t *testing.T) {
	empty := gitrepo.NewMemRepository("main").
		AddCommit("ccc3333").
		SetBranch("main", "ccc3333")
	// No tags at all: the release line expands to nothing.

	data := &Data{
		Apps: map[string]AppData{
			"empty-app": {Releases: []release.Specifier{{URL: "git+https://example.com/empty.git@main:"}}},
		},
		Categories: map[string]Category{},
	}
	fetcher := fakeFetcher{snaps: map[string]fetch.Snapshot{
		"git+https://example.com/empty.git": {Repo: empty},
	}}

	index, apps, err := NewBuilder(fetcher).GenerateIndex(context.Background(), data)
	require.NoError(t, err)
	require.Empty(t, apps)
	require.Empty(t, index.Apps)
}

func TestGenerateIndex_FetchFailureSkipsApp(t *testing.T) {
	data := &Data{
		Apps: map[string]AppData{
			"gone-app": {Releases: []release.Specifier{{URL: "git+https://example.com/gone.git@main:"}}},
			"demo-app": {Releases: []release.Specifier{{URL: demoURL + "@v1.0.0"}}},
		},
		Categories: map[string]Category{},
	}

	_, apps, err := NewBuilder(demoFetcher()).GenerateIndex(context.Background(), data)
	require.NoError(t, err, "an unreachable repository must not abort the build")
	require.Contains(t, apps, "demo-app")
	require.NotContains(t, apps, "gone-app")
}

func TestBuildApp_MetadataOverride(t *testing.T) {
	data := AppData{
		Releases: []release.Specifier{{
			URL: demoURL + "@v1.0.0",
			Metadata: map[string]any{
				"title":       "Overridden",
				"description": "From the registry data.",
			},
		}},
	}

	app, err := NewBuilder(demoFetcher()).buildApp(context.Background(), "demo-app", data)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.Equal(t, "Overridden", app.Releases["v1.0.0"].Metadata.Title)
	require.Equal(t, "From the registry data.", app.Metadata.Description)
}

func TestBuildApp_EnvironmentOverride(t *testing.T) {
	data := AppData{
		Releases: []release.Specifier{{
			URL: demoURL + "@v1.0.0",
			Environment: map[string]any{
				"python_requirements": []any{"pinned==1.2.3"},
			},
		}},
	}

	app, err := NewBuilder(demoFetcher()).buildApp(context.Background(), "demo-app", data)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.Equal(t, []string{"pinned==1.2.3"},
		app.Releases["v1.0.0"].Environment.PythonRequirements)
}

func TestBuildApp_AppMetadataFallback(t *testing.T) {
	// The snapshot carries no setup.cfg; the app-level metadata block fills
	// in for every release.
	repo := gitrepo.NewMemRepository("main").
		AddCommit("ddd4444").
		SetBranch("main", "ddd4444").
		SetTag("v1", "ddd4444").
		PutFile("ddd4444", "requirements.txt", []byte("demo==1.0\n"))

	data := AppData{
		Releases: []release.Specifier{{URL: "git+https://example.com/bare.git@main:"}},
		Metadata: map[string]any{
			"title":       "Bare App",
			"description": "Declared in apps.yaml.",
		},
	}
	fetcher := fakeFetcher{snaps: map[string]fetch.Snapshot{
		"git+https://example.com/bare.git": {Repo: repo},
	}}

	app, err := NewBuilder(fetcher).buildApp(context.Background(), "bare-app", data)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.Equal(t, "Bare App", app.Metadata.Title)
	require.Equal(t, []string{"demo==1.0"}, app.Releases["v1"].Environment.PythonRequirements)
}

func TestBuildApp_LocalRelease(t *testing.T) {
	dir := t.TempDir()
	writeLocalApp(t, dir)

	data := AppData{
		Releases: []release.Specifier{{URL: "file://" + dir, Version: "2024.1"}},
	}
	fetcher := fakeFetcher{snaps: map[string]fetch.Snapshot{
		"file://" + dir: {Dir: dir},
	}}

	app, err := NewBuilder(fetcher).buildApp(context.Background(), "local-app", data)
	require.NoError(t, err)
	require.NotNil(t, app)
	require.Contains(t, app.Releases, "2024.1")
	require.Equal(t, "Local App", app.Metadata.Title)
}

func TestBuildApp_LocalReleaseRequiresVersion(t *testing.T) {
	dir := t.TempDir()
	writeLocalApp(t, dir)

	data := AppData{
		Releases: []release.Specifier{{URL: "file://" + dir}},
	}
	fetcher := fakeFetcher{snaps: map[string]fetch.Snapshot{
		"file://" + dir: {Dir: dir},
	}}

	app, err := NewBuilder(fetcher).buildApp(context.Background(), "local-app", data)
	require.NoError(t, err)
	require.Nil(t, app, "a local release without a version cannot be keyed")
}

func writeLocalApp(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.cfg"), []byte(`
[aiidalab]
title = Local App
description = Served from a local directory.
`), 0o644))
}

func TestLatestVersion(t *testing.T) {
	tests := []struct {
		name     string
		versions []string
		want     string
	}{
		{"plain semver", []string{"1.0.0", "0.9.0", "1.1.0"}, "1.1.0"},
		{"v prefix", []string{"v1.0.0", "v2.0.0", "v0.1.0"}, "v2.0.0"},
		{"numeric beats lexical", []string{"v2.0.0", "v10.0.0"}, "v10.0.0"},
		{"prerelease ordering", []string{"1.0.0-rc1", "1.0.0"}, "1.0.0"},
		{"semver beats junk", []string{"main", "1.0.0"}, "1.0.0"},
		{"all junk falls back to lexical", []string{"alpha", "beta"}, "beta"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, latestVersion(tt.versions))
		})
	}
}

func TestMigrateAppData(t *testing.T) {
	data := AppData{
		Metadata:   map[string]any{"title": "T", "version": "legacy", "requires": "x"},
		Categories: []string{"quantum"},
		Logo:       "logo.png",
	}
	migrateAppData(&data)

	require.Equal(t, []string{"quantum"}, data.Metadata["categories"])
	require.Equal(t, "logo.png", data.Metadata["logo"])
	require.NotContains(t, data.Metadata, "version")
	require.NotContains(t, data.Metadata, "requires")
}
