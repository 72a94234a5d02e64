// Package scan extracts app metadata and environment specifications from the
// configuration files of a repository snapshot at a specific commit. Metadata
// comes from a setup.cfg [aiidalab] section with the PEP 426 [metadata]
// section as fallback; python requirements come from [options]
// install_requires with requirements.txt as fallback.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/sciworks/appreg/internal/gitrepo"
	"github.com/sciworks/appreg/internal/log"
)

// ErrNoMetadata indicates the snapshot carries no usable app metadata.
var ErrNoMetadata = errors.New("no app metadata found")

// FileSource reads file content addressed by commit and path. A git
// repository view satisfies it; plain directories ignore the commit.
type FileSource interface {
	ReadFile(commit, path string) ([]byte, error)
	IsDir(commit, path string) (bool, error)
}

// Configuration files are looked up in the .aiidalab directory first, the
// repository root second.
var searchDirs = []string{".aiidalab", "."}

// Metadata is the app metadata specification. Title and Description are
// required; everything else is optional.
type Metadata struct {
	Title            string   `json:"title" yaml:"title"`
	Description      string   `json:"description" yaml:"description"`
	Authors          string   `json:"authors,omitempty" yaml:"authors,omitempty"`
	State            string   `json:"state,omitempty" yaml:"state,omitempty"`
	DocumentationURL string   `json:"documentation_url,omitempty" yaml:"documentation_url,omitempty"`
	ExternalURL      string   `json:"external_url,omitempty" yaml:"external_url,omitempty"`
	Logo             string   `json:"logo,omitempty" yaml:"logo,omitempty"`
	Categories       []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	Version          string   `json:"version,omitempty" yaml:"version,omitempty"`
}

// Environment is the app environment specification.
type Environment struct {
	PythonRequirements []string `json:"python_requirements,omitempty" yaml:"python_requirements,omitempty"`
}

// Result pairs what a single commit scan produced. Metadata is nil when the
// snapshot has no setup.cfg or the file lacks the required fields.
type Result struct {
	Metadata    *Metadata
	Environment Environment
}

// Commit scans the app configuration stored at commit.
func Commit(repo FileSource, commit string) (Result, error) {
	dir, err := configDir(repo, commit)
	if err != nil {
		return Result{}, err
	}

	var res Result

	cfg, hasCfg, err := loadSetupCfg(repo, commit, dir)
	if err != nil {
		return Result{}, err
	}

	if hasCfg {
		md, err := parseMetadata(cfg)
		if err != nil {
			log.Debug(log.CatScan, "metadata incomplete", "commit", commit, "err", err)
		} else {
			res.Metadata = md
		}

		if reqs, ok := installRequires(cfg); ok {
			res.Environment.PythonRequirements = reqs
			return res, nil
		}
	}

	if content, err := repo.ReadFile(commit, path.Join(dir, "requirements.txt")); err == nil {
		res.Environment.PythonRequirements = parseRequirements(string(content))
	}

	return res, nil
}

// Dir scans the app configuration in a plain directory tree.
func Dir(root string) (Result, error) {
	return Commit(dirSource{root: root}, "")
}

// dirSource adapts a filesystem directory to the FileSource interface.
type dirSource struct {
	root string
}

func (d dirSource) ReadFile(_, path string) ([]byte, error) {
	content, err := os.ReadFile(filepath.Join(d.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, gitrepo.ErrFileNotFound)
	}
	return content, err
}

func (d dirSource) IsDir(_, path string) (bool, error) {
	info, err := os.Stat(filepath.Join(d.root, filepath.FromSlash(path)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// configDir returns the first search directory present at commit.
func configDir(repo FileSource, commit string) (string, error) {
	for _, dir := range searchDirs {
		ok, err := repo.IsDir(commit, dir)
		if err != nil {
			return "", fmt.Errorf("probing %s at %s: %w", dir, commit, err)
		}
		if ok {
			return dir, nil
		}
	}
	return "", fmt.Errorf("commit %s: %w", commit, ErrNoMetadata)
}

func loadSetupCfg(repo FileSource, commit, dir string) (*ini.File, bool, error) {
	content, err := repo.ReadFile(commit, path.Join(dir, "setup.cfg"))
	if err != nil {
		if errors.Is(err, gitrepo.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
	}, content)
	if err != nil {
		return nil, false, fmt.Errorf("parsing setup.cfg at %s: %w", commit, err)
	}
	return cfg, true, nil
}

// parseMetadata reads the [aiidalab] section, falling back to the PEP 426
// [metadata] section for any missing field.
func parseMetadata(cfg *ini.File) (*Metadata, error) {
	app := section(cfg, "aiidalab")
	meta := section(cfg, "metadata")

	urls := parseProjectURLs(value(meta, "project_urls"))

	md := &Metadata{
		Title:       pick(app, "title", value(meta, "name")),
		Version:     pick(app, "version", value(meta, "version")),
		Description: pick(app, "description", value(meta, "description")),
		Authors:     pick(app, "authors", value(meta, "author")),
		ExternalURL: pick(app, "external_url", value(meta, "url")),
		DocumentationURL: pick(app, "documentation_url",
			firstOf(urls["Documentation"], urls["documentation"])),
		Logo:  pick(app, "logo", firstOf(urls["Logo"], urls["logo"])),
		State: pick(app, "state", developmentState(value(meta, "classifiers"))),
	}

	for _, line := range strings.Split(value(app, "categories"), "\n") {
		if c := strings.TrimSpace(line); c != "" {
			md.Categories = append(md.Categories, c)
		}
	}

	if md.Title == "" || md.Description == "" {
		return nil, fmt.Errorf("title and description are required: %w", ErrNoMetadata)
	}
	return md, nil
}

// installRequires returns the [options] install_requires entries, reporting
// whether the key was present at all.
func installRequires(cfg *ini.File) ([]string, bool) {
	options := section(cfg, "options")
	if options == nil || !options.HasKey("install_requires") {
		return nil, false
	}
	return parseRequirements(options.Key("install_requires").String()), true
}

// parseRequirements splits requirement lines, dropping blanks and comments.
func parseRequirements(content string) []string {
	var reqs []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			reqs = append(reqs, line)
		}
	}
	return reqs
}

// parseProjectURLs parses the "Key = value" lines of a project_urls field.
func parseProjectURLs(raw string) map[string]string {
	urls := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		if key, val, found := strings.Cut(line, "="); found {
			urls[strings.TrimSpace(key)] = strings.TrimSpace(val)
		}
	}
	return urls
}

// developmentState maps standard trove classifiers (PEP 301) to app
// development states.
func developmentState(classifiers string) string {
	switch {
	case strings.Contains(classifiers, "Development Status :: 1 - Planning"):
		return "registered"
	case strings.Contains(classifiers, "Development Status :: 5 - Production/Stable"):
		return "stable"
	case strings.Contains(classifiers, "Development Status :: 2 - Pre-Alpha"),
		strings.Contains(classifiers, "Development Status :: 3 - Alpha"),
		strings.Contains(classifiers, "Development Status :: 4 - Beta"):
		return "development"
	default:
		return "registered"
	}
}

func section(cfg *ini.File, name string) *ini.Section {
	if s, err := cfg.GetSection(name); err == nil {
		return s
	}
	return nil
}

func value(s *ini.Section, key string) string {
	if s == nil || !s.HasKey(key) {
		return ""
	}
	return strings.TrimSpace(s.Key(key).String())
}

// pick prefers the [aiidalab] value over the fallback.
func pick(app *ini.Section, key, fallback string) string {
	if v := value(app, key); v != "" {
		return v
	}
	return fallback
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
