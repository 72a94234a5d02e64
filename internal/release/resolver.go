package release

import (
	"strings"

	"github.com/sciworks/appreg/internal/gitrepo"
	"github.com/sciworks/appreg/internal/log"
)

// Resolved is one concrete installable release.
type Resolved struct {
	Version  string    `json:"version"`
	Commit   string    `json:"commit"`
	URL      string    `json:"url"`
	FromLine bool      `json:"-"` // expanded from a release line
	Spec     Specifier `json:"-"` // originating specifier, carries overrides
}

// Resolve turns a list of specifiers plus a repository snapshot into an
// ordered list of releases. Each specifier resolves independently: a
// malformed or unresolvable specifier is reported as a diagnostic and never
// aborts its siblings. Output keeps declaration order; a release line
// expands oldest to newest by ancestry.
//
// Resolution is a pure function of its inputs: the same snapshot always
// yields the same releases.
func Resolve(specs []Specifier, repo gitrepo.RepositoryView) ([]Resolved, []error) {
	var out []Resolved
	var diags []error
	position := make(map[string]int) // version -> index in out

	for _, spec := range specs {
		releases, err := resolveOne(spec, repo)
		if err != nil {
			diags = append(diags, err)
			continue
		}

		for _, r := range releases {
			i, seen := position[r.Version]
			if !seen {
				position[r.Version] = len(out)
				out = append(out, r)
				continue
			}

			prev := out[i]
			switch {
			case r.Spec.HasVersionOverride():
				// A later explicit override always wins.
				out[i] = r
			case prev.Commit == r.Commit || prev.Spec.HasVersionOverride():
				// Same release reached twice, or the earlier entry pinned
				// the version on purpose: first resolution stands.
			default:
				diags = append(diags, &AmbiguousVersionError{
					Version:      r.Version,
					FirstCommit:  prev.Commit,
					SecondCommit: r.Commit,
				})
			}
		}
	}

	return out, diags
}

// resolveOne expands a single specifier.
func resolveOne(spec Specifier, repo gitrepo.RepositoryView) ([]Resolved, error) {
	base, rawLine, hasLine, err := SplitURL(spec.URL)
	if err != nil {
		return nil, &SyntaxError{Spec: spec.URL, Reason: err.Error()}
	}

	if !hasLine {
		// No "@" at all: pin the snapshot's checked-out branch.
		branch, err := repo.CurrentBranch()
		if err != nil {
			return nil, &RefNotFoundError{Spec: spec.URL, Ref: "HEAD", Err: err}
		}
		rawLine = branch
	}

	line := ParseLine(rawLine)
	if line.Rev == "" {
		branch, err := repo.CurrentBranch()
		if err != nil {
			return nil, &RefNotFoundError{Spec: spec.URL, Ref: "HEAD", Err: err}
		}
		line.Rev = branch
	}

	if line.Rev == "*" {
		return resolveWildcard(spec, base, line, repo)
	}

	if !line.HasSelection {
		return resolveExact(spec, base, line.Rev, repo)
	}

	tags, err := lineTags(spec.URL, line.Rev, line.Selection, repo)
	if err != nil {
		return nil, err
	}

	if spec.HasVersionOverride() {
		// A single version cannot name a whole range of releases.
		log.Warn(log.CatResolve, "version override ignored for release line",
			"spec", spec.URL, "version", spec.Version)
	}

	out := make([]Resolved, 0, len(tags))
	for _, tag := range tags {
		out = append(out, Resolved{
			Version:  tag.Name,
			Commit:   tag.Commit,
			URL:      PinURL(base, tag.Commit),
			FromLine: true,
			Spec:     spec,
		})
	}
	return out, nil
}

// resolveExact pins a single revision: branch before tag before commit id.
func resolveExact(spec Specifier, base, rev string, repo gitrepo.RepositoryView) ([]Resolved, error) {
	ref, err := repo.ResolveRev(rev)
	if err != nil {
		return nil, &RefNotFoundError{Spec: spec.URL, Ref: rev, Err: err}
	}

	version := rev
	if spec.HasVersionOverride() {
		version = spec.Version
	}

	return []Resolved{{
		Version: version,
		Commit:  ref.Commit,
		URL:     PinURL(base, ref.Commit),
		Spec:    spec,
	}}, nil
}

// resolveWildcard unions the release line over every remote branch,
// keeping the first occurrence of each tag.
func resolveWildcard(spec Specifier, base string, line Line, repo gitrepo.RepositoryView) ([]Resolved, error) {
	if !line.HasSelection {
		return nil, &SyntaxError{Spec: spec.URL, Reason: "wildcard branch requires a revision selection"}
	}

	branches, err := repo.RemoteBranches()
	if err != nil {
		return nil, &RefNotFoundError{Spec: spec.URL, Ref: "*", Err: err}
	}

	seen := make(map[string]bool)
	var out []Resolved
	for _, branch := range branches {
		tags, err := lineTags(spec.URL, branch, line.Selection, repo)
		if err != nil {
			return nil, err
		}
		for _, tag := range tags {
			if seen[tag.Name] {
				continue
			}
			seen[tag.Name] = true
			out = append(out, Resolved{
				Version:  tag.Name,
				Commit:   tag.Commit,
				URL:      PinURL(base, tag.Commit),
				FromLine: true,
				Spec:     spec,
			})
		}
	}
	return out, nil
}

// lineTags returns the tagged commits a release line selects on one branch,
// in ancestry order oldest first.
func lineTags(specURL, branch, selection string, repo gitrepo.RepositoryView) ([]gitrepo.Tag, error) {
	merged, err := repo.MergedTags(branch)
	if err != nil {
		return nil, &RefNotFoundError{Spec: specURL, Ref: branch, Err: err}
	}

	// An empty selection selects every tagged commit on the branch.
	if selection == "" {
		return merged, nil
	}

	if !strings.Contains(selection, "..") {
		return nil, &SyntaxError{
			Spec:   specURL,
			Reason: "revision selection must specify a range containing the '..' operator",
		}
	}

	ref, err := repo.BranchRef(branch)
	if err != nil {
		return nil, &RefNotFoundError{Spec: specURL, Ref: branch, Err: err}
	}

	// Expand incomplete ranges against the branch ref: "v1.." selects
	// everything on the branch after v1.
	i := strings.LastIndex(selection, "..")
	start, stop := selection[:i], selection[i+2:]
	if start == "" {
		start = ref
	}
	if stop == "" {
		stop = ref
	}

	commits, err := repo.RevList(start + ".." + stop)
	if err != nil {
		boundary := strings.TrimSuffix(selection[:i], "^")
		if boundary == "" {
			boundary = selection[i+2:]
		}
		return nil, &RefNotFoundError{Spec: specURL, Ref: boundary, Err: err}
	}

	selected := make(map[string]bool, len(commits))
	for _, c := range commits {
		selected[c] = true
	}

	var tags []gitrepo.Tag
	for _, tag := range merged {
		if selected[tag.Commit] {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}
