package registry

import (
	"errors"
	"net/url"
	"strings"

	"github.com/sciworks/appreg/internal/release"
)

// extractGitURL derives the app's browsable https repository URL from its
// release specifiers. The first git+https specifier that declares a release
// line wins; its branch is kept as the URL fragment.
func extractGitURL(specs []release.Specifier) (string, error) {
	for _, spec := range specs {
		base, rawLine, hasLine, err := release.SplitURL(spec.URL)
		if err != nil || !hasLine || !strings.HasPrefix(base, "git+https://") {
			continue
		}
		line := release.ParseLine(rawLine)
		if !line.HasSelection {
			continue
		}

		gitURL := strings.TrimPrefix(base, "git+")
		if line.Rev != "" && line.Rev != "*" {
			gitURL += "#" + line.Rev
		}
		return gitURL, nil
	}
	return "", errors.New("no git+https release line among the release specifiers")
}

// hostedOn names the hosting service: the last two labels of the hostname.
func hostedOn(gitURL string) string {
	u, err := url.Parse(gitURL)
	if err != nil {
		return ""
	}
	labels := strings.Split(u.Hostname(), ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}

// gitAuthor derives a default author from the repository owner path segment.
func gitAuthor(gitURL string) string {
	u, err := url.Parse(gitURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) > 0 {
		return parts[0]
	}
	return ""
}

// applyMetaDefaults fills the authoritative metadata fields that every app
// document carries.
func applyMetaDefaults(app *App) {
	if app.Metadata == nil {
		return
	}
	if app.Metadata.State == "" {
		app.Metadata.State = "registered"
	}
	if app.Metadata.Title == "" {
		app.Metadata.Title = app.Name
	}
	if app.Metadata.Authors == "" && app.GitURL != "" {
		app.Metadata.Authors = gitAuthor(app.GitURL)
	}
}
