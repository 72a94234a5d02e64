package release

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/sciworks/appreg/internal/gitrepo"
)

func TestSplitURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantBase string
		wantLine string
		wantHas  bool
	}{
		{
			name:     "no line",
			input:    "git+https://example.com/app.git",
			wantBase: "git+https://example.com/app.git",
			wantHas:  false,
		},
		{
			name:     "exact revision",
			input:    "git+https://example.com/app.git@v1.0.0",
			wantBase: "git+https://example.com/app.git",
			wantLine: "v1.0.0",
			wantHas:  true,
		},
		{
			name:     "release line",
			input:    "git+https://example.com/app.git@main:v1.0.0..",
			wantBase: "git+https://example.com/app.git",
			wantLine: "main:v1.0.0..",
			wantHas:  true,
		},
		{
			name:     "user in authority is not a line",
			input:    "git+ssh://git@example.com/app.git",
			wantBase: "git+ssh://git@example.com/app.git",
			wantHas:  false,
		},
		{
			name:     "user in authority plus line",
			input:    "git+ssh://git@example.com/app.git@develop:",
			wantBase: "git+ssh://git@example.com/app.git",
			wantLine: "develop:",
			wantHas:  true,
		},
		{
			name:     "last at sign wins",
			input:    "git+https://example.com/app@2.git@v2",
			wantBase: "git+https://example.com/app@2.git",
			wantLine: "v2",
			wantHas:  true,
		},
		{
			name:     "opaque file url",
			input:    "git+file:relative/app@main:",
			wantBase: "git+file:relative/app",
			wantLine: "main:",
			wantHas:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, line, has, err := SplitURL(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.wantBase, base)
			require.Equal(t, tt.wantLine, line)
			require.Equal(t, tt.wantHas, has)
		})
	}
}

func TestSplitURL_Invalid(t *testing.T) {
	_, _, _, err := SplitURL("git+https://exa mple.com/%zz")
	require.Error(t, err)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		input string
		want  Line
	}{
		{"main", Line{Rev: "main"}},
		{"main:", Line{Rev: "main", HasSelection: true}},
		{"main:v1..", Line{Rev: "main", Selection: "v1..", HasSelection: true}},
		{"main:v1..v2", Line{Rev: "main", Selection: "v1..v2", HasSelection: true}},
		{":v1..", Line{Selection: "v1..", HasSelection: true}},
		{"*:", Line{Rev: "*", HasSelection: true}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.want, ParseLine(tt.input))
		})
	}
}

func TestSpecifier_UnmarshalYAML(t *testing.T) {
	t.Run("bare string", func(t *testing.T) {
		var s Specifier
		err := yaml.Unmarshal([]byte(`"git+https://example.com/app.git@main:"`), &s)
		require.NoError(t, err)
		require.Equal(t, "git+https://example.com/app.git@main:", s.URL)
		require.False(t, s.HasVersionOverride())
	})

	t.Run("object form", func(t *testing.T) {
		doc := `
url: git+https://example.com/app.git@v1.0.0
version: "1.0.0"
metadata:
  title: Demo
environment:
  python_requirements:
    - demo==1.0.0
`
		var s Specifier
		err := yaml.Unmarshal([]byte(doc), &s)
		require.NoError(t, err)
		require.Equal(t, "git+https://example.com/app.git@v1.0.0", s.URL)
		require.Equal(t, "1.0.0", s.Version)
		require.Equal(t, "Demo", s.Metadata["title"])
		require.Contains(t, s.Environment, "python_requirements")
	})

	t.Run("object without url", func(t *testing.T) {
		var s Specifier
		err := yaml.Unmarshal([]byte(`version: "1.0.0"`), &s)
		require.Error(t, err)
	})

	t.Run("list of specifiers mixes both forms", func(t *testing.T) {
		doc := `
- git+https://example.com/one.git@main:
- url: git+https://example.com/two.git@v2
  version: "2.0"
`
		var list []Specifier
		require.NoError(t, yaml.Unmarshal([]byte(doc), &list))
		require.Len(t, list, 2)
		require.Equal(t, "git+https://example.com/one.git@main:", list[0].URL)
		require.Equal(t, "2.0", list[1].Version)
	})
}

func TestSpecifier_IsGit(t *testing.T) {
	require.True(t, Specifier{URL: "git+https://example.com/app.git"}.IsGit())
	require.True(t, Specifier{URL: "git+file:/srv/app"}.IsGit())
	require.False(t, Specifier{URL: "https://example.com/app.tar.gz"}.IsGit())
}

func TestPinURL(t *testing.T) {
	require.Equal(t, "git+https://example.com/app.git@abc1234",
		PinURL("git+https://example.com/app.git", "abc1234"))
}

// TestResolve_LineProperties checks structural invariants of release-line
// expansion over randomly generated linear histories.
func TestResolve_LineProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(t, "commits")

		repo := gitrepo.NewMemRepository("main")
		var commits []string
		var tagged []string
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("c%07d", i)
			if i == 0 {
				repo.AddCommit(id)
			} else {
				repo.AddCommit(id, commits[i-1])
			}
			commits = append(commits, id)
		}
		repo.SetBranch("main", commits[n-1])

		for i := 0; i < n; i++ {
			if rapid.Bool().Draw(t, fmt.Sprintf("tag%d", i)) {
				name := fmt.Sprintf("v0.%d", i)
				repo.SetTag(name, commits[i])
				tagged = append(tagged, name)
			}
		}

		releases, diags := Resolve(specs(repoURL+"@main:"), repo)
		require.Empty(t, diags)

		// Every tagged commit appears exactly once, oldest first.
		require.Equal(t, tagged, versions(releases))

		// Resolution is deterministic.
		again, _ := Resolve(specs(repoURL+"@main:"), repo)
		require.Equal(t, releases, again)

		// A parent-inclusive range from the oldest tag selects every tag.
		if len(tagged) > 0 {
			ranged, rangeDiags := Resolve(specs(repoURL+"@main:"+tagged[0]+"^.."), repo)
			require.Empty(t, rangeDiags)
			require.Equal(t, tagged, versions(ranged))
		}
	})
}
