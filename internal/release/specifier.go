// Package release resolves app release specifiers against a git repository
// snapshot. A specifier either pins one exact revision
// ("git+https://host/app.git@v1.0.0") or declares a release line
// ("git+https://host/app.git@main:v1.0.0..") selecting a range of tagged
// commits on a branch.
package release

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/yaml.v3"
)

// Specifier declares where releases of an app come from. In the registry's
// apps.yaml a specifier is either a bare URL string or an object carrying
// per-release overrides.
type Specifier struct {
	URL         string         `yaml:"url" json:"url"`
	Version     string         `yaml:"version,omitempty" json:"version,omitempty"`
	Metadata    map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	Environment map[string]any `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// UnmarshalYAML accepts both the bare-string and the object form.
func (s *Specifier) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.URL)
	}

	type plain Specifier // drop methods to avoid recursion
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.URL == "" {
		return fmt.Errorf("release specifier object requires a url field")
	}
	*s = Specifier(p)
	return nil
}

// HasVersionOverride reports whether the specifier pins an explicit version.
func (s Specifier) HasVersionOverride() bool {
	return s.Version != ""
}

// IsGit reports whether the specifier's URL names a git repository.
func (s Specifier) IsGit() bool {
	return strings.HasPrefix(s.URL, "git+")
}

// Line is a parsed release line: a revision plus an optional revision
// selection. Selection distinguishes "absent" (pin the revision itself)
// from "empty" (every tagged commit on the branch).
type Line struct {
	Rev          string
	Selection    string
	HasSelection bool
}

// SplitURL splits a specifier URL into its base repository URL and the
// release line after the last "@" in the URL path. hasLine is false when
// the URL carries no line at all.
func SplitURL(rawURL string) (base string, line string, hasLine bool, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", false, fmt.Errorf("unparsable url: %w", err)
	}
	// Only the path participates: a user@host authority is left alone.
	if i := strings.LastIndex(u.Path, "@"); i >= 0 {
		line = u.Path[i+1:]
		u.Path = u.Path[:i]
		return u.String(), line, true, nil
	}
	if u.Opaque != "" {
		// Schemes like git+file:relative/path parse as opaque.
		if i := strings.LastIndex(u.Opaque, "@"); i >= 0 {
			line = u.Opaque[i+1:]
			u.Opaque = u.Opaque[:i]
			return u.String(), line, true, nil
		}
	}
	return rawURL, "", false, nil
}

// ParseLine splits a release line at its first colon into the revision and
// the revision selection.
func ParseLine(line string) Line {
	rev, selection, found := strings.Cut(line, ":")
	return Line{Rev: rev, Selection: selection, HasSelection: found}
}

// PinURL appends "@commit" to the base repository URL, producing the
// concrete fetch location of one release.
func PinURL(base, commit string) string {
	return base + "@" + commit
}
