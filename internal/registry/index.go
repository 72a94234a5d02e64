package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/sciworks/appreg/internal/fetch"
	"github.com/sciworks/appreg/internal/log"
	"github.com/sciworks/appreg/internal/release"
	"github.com/sciworks/appreg/internal/scan"
	"github.com/sciworks/appreg/internal/tracing"
)

// Release is one concrete release in the per-app api document.
type Release struct {
	Environment scan.Environment `json:"environment"`
	Metadata    *scan.Metadata   `json:"metadata"`
	URL         string           `json:"url"`
}

// App is the per-app api document.
type App struct {
	Name     string             `json:"name"`
	Metadata *scan.Metadata     `json:"metadata"`
	Releases map[string]Release `json:"releases"`
	GitURL   string             `json:"git_url,omitempty"`
	HostedOn string             `json:"hosted_on,omitempty"`
}

// IndexEntry is one app's entry in the apps index.
type IndexEntry struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Index is the top-level apps index document.
type Index struct {
	Apps       map[string]IndexEntry `json:"apps"`
	Categories map[string]Category   `json:"categories"`
}

// SnapshotFetcher makes release sources locally available.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Snapshot, error)
}

// Builder generates the registry index and app documents from registry data.
type Builder struct {
	fetcher SnapshotFetcher
}

func NewBuilder(fetcher SnapshotFetcher) *Builder {
	return &Builder{fetcher: fetcher}
}

// GenerateIndex resolves and scans all apps. Apps without a single resolved
// release are dropped from the index. Per-release problems never abort the
// build; they are logged and the affected release is skipped.
func (b *Builder) GenerateIndex(ctx context.Context, data *Data) (*Index, map[string]*App, error) {
	index := &Index{
		Apps:       make(map[string]IndexEntry),
		Categories: data.Categories,
	}
	apps := make(map[string]*App)

	ids := make([]string, 0, len(data.Apps))
	for id := range data.Apps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		app, err := b.buildApp(ctx, id, data.Apps[id])
		if err != nil {
			return nil, nil, fmt.Errorf("building app %s: %w", id, err)
		}
		if app == nil {
			log.Warn(log.CatRegistry, "app has no releases, dropping", "app", id)
			continue
		}

		categories := app.Metadata.Categories
		if categories == nil {
			categories = []string{}
		}
		apps[id] = app
		index.Apps[id] = IndexEntry{Name: app.Name, Categories: categories}
	}

	return index, apps, nil
}

// buildApp assembles one app document. Returns nil when no release resolved.
func (b *Builder) buildApp(ctx context.Context, id string, data AppData) (*App, error) {
	ctx, span := tracing.Start(ctx, "registry.app",
		trace.WithAttributes(attribute.String("app.id", id)))
	defer span.End()

	log.Info(log.CatRegistry, "building app", "app", id)
	migrateAppData(&data)

	fallback, err := decodeAs[scan.Metadata](data.Metadata)
	if err != nil {
		return nil, fmt.Errorf("app metadata block: %w", err)
	}

	releases := make(map[string]Release)
	for _, group := range groupByBase(data.Releases) {
		if err := b.gatherGroup(ctx, id, group, fallback, releases); err != nil {
			return nil, err
		}
	}
	if len(releases) == 0 {
		return nil, nil
	}

	versions := make([]string, 0, len(releases))
	for version := range releases {
		versions = append(versions, version)
	}
	latest := latestVersion(versions)

	// The latest release's metadata becomes the app's authoritative
	// metadata. Copied, so the defaults below leave the release untouched.
	authoritative := *releases[latest].Metadata
	app := &App{
		Name:     id,
		Metadata: &authoritative,
		Releases: releases,
	}

	if gitURL, err := extractGitURL(data.Releases); err != nil {
		log.Warn(log.CatRegistry, "unable to determine git url", "app", id, "err", err)
	} else {
		app.GitURL = gitURL
		app.HostedOn = hostedOn(gitURL)
	}

	applyMetaDefaults(app)
	return app, nil
}

// specGroup is a run of release specifiers sharing one base repository URL.
type specGroup struct {
	base  string
	specs []release.Specifier
}

func groupByBase(specs []release.Specifier) []specGroup {
	var groups []specGroup
	byBase := make(map[string]int)
	for _, spec := range specs {
		base, _, _, err := release.SplitURL(spec.URL)
		if err != nil {
			// Reported again as a resolver diagnostic; keep the specifier
			// with its own group so siblings are unaffected.
			base = spec.URL
		}
		i, ok := byBase[base]
		if !ok {
			i = len(groups)
			byBase[base] = i
			groups = append(groups, specGroup{base: base})
		}
		groups[i].specs = append(groups[i].specs, spec)
	}
	return groups
}

// gatherGroup fetches one repository and adds its resolved releases.
func (b *Builder) gatherGroup(ctx context.Context, id string, group specGroup, fallback *scan.Metadata, out map[string]Release) error {
	snap, err := b.fetcher.Fetch(ctx, group.base)
	if err != nil {
		log.Warn(log.CatRegistry, "fetching release source failed, skipping",
			"app", id, "url", group.base, "err", err)
		return nil
	}

	if snap.Repo == nil {
		for _, spec := range group.specs {
			b.gatherLocal(id, spec, snap.Dir, fallback, out)
		}
		return nil
	}

	_, resolveSpan := tracing.Start(ctx, "release.resolve",
		trace.WithAttributes(attribute.String("repo.url", group.base)))
	resolved, diags := release.Resolve(group.specs, snap.Repo)
	resolveSpan.End()

	for _, diag := range diags {
		log.Warn(log.CatRegistry, "release resolution problem",
			"app", id, "url", group.base, "err", diag)
	}

	_, scanSpan := tracing.Start(ctx, "app.scan",
		trace.WithAttributes(attribute.Int("releases", len(resolved))))
	defer scanSpan.End()

	for _, r := range resolved {
		result, err := scan.Commit(snap.Repo, r.Commit)
		if err != nil {
			log.Warn(log.CatRegistry, "scanning release failed, skipping",
				"app", id, "version", r.Version, "err", err)
			continue
		}

		rel, err := assembleRelease(r.Spec, result, fallback, r.URL)
		if err != nil {
			return err
		}
		if rel.Metadata == nil {
			log.Warn(log.CatRegistry, "release has no metadata and no override, skipping",
				"app", id, "version", r.Version)
			continue
		}
		insertRelease(id, r.Version, *rel, out)
	}
	return nil
}

// gatherLocal adds a release backed by a plain directory. These carry no tag
// to derive a version from, so an explicit version override is required.
func (b *Builder) gatherLocal(id string, spec release.Specifier, dir string, fallback *scan.Metadata, out map[string]Release) {
	if !spec.HasVersionOverride() {
		log.Warn(log.CatRegistry, "local release requires an explicit version, skipping",
			"app", id, "url", spec.URL)
		return
	}

	result, err := scan.Dir(dir)
	if err != nil {
		log.Warn(log.CatRegistry, "scanning local release failed, skipping",
			"app", id, "url", spec.URL, "err", err)
		return
	}

	rel, err := assembleRelease(spec, result, fallback, spec.URL)
	if err != nil || rel.Metadata == nil {
		log.Warn(log.CatRegistry, "local release has no metadata, skipping",
			"app", id, "url", spec.URL, "err", err)
		return
	}
	insertRelease(id, spec.Version, *rel, out)
}

// assembleRelease applies the specifier's overrides to the scanned result.
// Metadata precedence: per-release override, then scanned, then the
// app-level metadata block.
func assembleRelease(spec release.Specifier, result scan.Result, fallback *scan.Metadata, url string) (*Release, error) {
	md := result.Metadata
	if spec.Metadata != nil {
		override, err := decodeAs[scan.Metadata](spec.Metadata)
		if err != nil {
			return nil, fmt.Errorf("release metadata override: %w", err)
		}
		md = override
	}
	if md == nil {
		md = fallback
	}

	env := result.Environment
	if spec.Environment != nil {
		override, err := decodeAs[scan.Environment](spec.Environment)
		if err != nil {
			return nil, fmt.Errorf("release environment override: %w", err)
		}
		env = *override
	}

	return &Release{Environment: env, Metadata: md, URL: url}, nil
}

func insertRelease(id, version string, rel Release, out map[string]Release) {
	if prev, exists := out[version]; exists && prev.URL != rel.URL {
		log.Warn(log.CatRegistry, "version declared by multiple sources, keeping latest",
			"app", id, "version", version)
	}
	out[version] = rel
}

// migrateAppData folds deprecated top-level keys into the metadata block.
func migrateAppData(data *AppData) {
	if data.Metadata == nil {
		return
	}
	if _, ok := data.Metadata["categories"]; !ok && data.Categories != nil {
		data.Metadata["categories"] = data.Categories
	}
	if _, ok := data.Metadata["logo"]; !ok && data.Logo != "" {
		data.Metadata["logo"] = data.Logo
	}
	delete(data.Metadata, "requires")
	delete(data.Metadata, "version")
}

// latestVersion picks the semantically greatest version. Versions that do
// not parse as semantic versions lose against those that do and fall back to
// lexical comparison among themselves.
func latestVersion(versions []string) string {
	var best string
	var bestParsed *semver.Version
	var bestLexical string

	for _, v := range versions {
		parsed, err := semver.NewVersion(strings.TrimPrefix(v, "v"))
		if err != nil {
			if v > bestLexical {
				bestLexical = v
			}
			continue
		}
		if bestParsed == nil || parsed.GreaterThan(bestParsed) {
			best, bestParsed = v, parsed
		}
	}

	if best != "" {
		return best
	}
	return bestLexical
}

// decodeAs converts a decoded YAML mapping into a typed structure.
func decodeAs[T any](raw map[string]any) (*T, error) {
	if raw == nil {
		return nil, nil
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var v T
	if err := yaml.Unmarshal(buf, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
