package gitrepo

import (
	"bytes"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// Compile-time check that ExecRepository implements RepositoryView.
var _ RepositoryView = (*ExecRepository)(nil)

// ExecRepository implements RepositoryView by executing git commands against
// a local clone or checkout.
type ExecRepository struct {
	workDir string
}

// NewExecRepository creates a repository view over the checkout at workDir.
func NewExecRepository(workDir string) *ExecRepository {
	return &ExecRepository{workDir: workDir}
}

// Clone clones url into path and returns a view over the new clone.
func Clone(url, path string) (*ExecRepository, error) {
	cmd := exec.Command("git", "clone", "--quiet", url, path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("git clone %s: %s: %w", url, msg, err)
		}
		return nil, fmt.Errorf("git clone %s: %w", url, err)
	}
	return NewExecRepository(path), nil
}

// Path returns the local checkout directory.
func (r *ExecRepository) Path() string {
	return r.workDir
}

// runGit executes a git command and returns an error if it fails.
func (r *ExecRepository) runGit(args ...string) error {
	_, err := r.runGitOutput(args...)
	return err
}

// runGitOutput executes a git command and returns trimmed stdout.
func (r *ExecRepository) runGitOutput(args ...string) (string, error) {
	//nolint:gosec // G204: args come from controlled sources
	cmd := exec.Command("git", args...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			return "", parseGitError(args, stderrStr, err)
		}
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

var pathNotFoundPattern = regexp.MustCompile(`(?i)^fatal: path '.*' (exists on disk, but not in|does not exist)`)

// parseGitError maps git stderr messages to the package's error values.
func parseGitError(args []string, stderr string, originalErr error) error {
	stderrLower := strings.ToLower(stderr)

	if strings.Contains(stderrLower, "not a git repository") {
		return fmt.Errorf("%w: %s", ErrNotGitRepo, stderr)
	}
	if pathNotFoundPattern.MatchString(stderr) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, stderr)
	}
	if strings.Contains(stderrLower, "invalid object name") ||
		strings.Contains(stderrLower, "unknown revision") ||
		strings.Contains(stderrLower, "bad revision") {
		return fmt.Errorf("%w: %s", ErrRefNotFound, stderr)
	}

	return fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), stderr, originalErr)
}

// CurrentBranch returns the checked-out branch name.
func (r *ExecRepository) CurrentBranch() (string, error) {
	output, err := r.runGitOutput("branch", "--show-current")
	if err != nil {
		return "", err
	}
	if output == "" {
		return "", ErrDetachedHead
	}
	return output, nil
}

// BranchRef returns the full ref for a branch name, local before remote.
func (r *ExecRepository) BranchRef(name string) (string, error) {
	for _, ref := range []string{"refs/heads/" + name, "refs/remotes/origin/" + name} {
		if err := r.runGit("show-ref", "--verify", "--quiet", ref); err == nil {
			return ref, nil
		}
	}
	return "", fmt.Errorf("%w: branch %q", ErrRefNotFound, name)
}

// RemoteBranches lists remote-tracking branch names under origin.
func (r *ExecRepository) RemoteBranches() ([]string, error) {
	output, err := r.runGitOutput("for-each-ref", "--format=%(refname:short)", "refs/remotes/origin")
	if err != nil {
		return nil, err
	}
	var branches []string
	for line := range strings.SplitSeq(output, "\n") {
		name := strings.TrimPrefix(strings.TrimSpace(line), "origin/")
		if name == "" || name == "HEAD" {
			continue
		}
		branches = append(branches, name)
	}
	sort.Strings(branches)
	return branches, nil
}

// ResolveRev resolves a revision, branches before tags before commit ids.
func (r *ExecRepository) ResolveRev(rev string) (Ref, error) {
	if ref, err := r.BranchRef(rev); err == nil {
		commit, err := r.peel(ref)
		if err != nil {
			return Ref{}, err
		}
		return Ref{Name: rev, Ref: ref, Commit: commit}, nil
	}

	tagRef := "refs/tags/" + rev
	if err := r.runGit("show-ref", "--verify", "--quiet", tagRef); err == nil {
		commit, err := r.peel(tagRef)
		if err != nil {
			return Ref{}, err
		}
		return Ref{Name: rev, Ref: tagRef, Commit: commit}, nil
	}

	if isCommitish(rev) {
		if commit, err := r.peel(rev); err == nil {
			return Ref{Name: rev, Commit: commit}, nil
		}
	}

	return Ref{}, fmt.Errorf("%w: %q", ErrRefNotFound, rev)
}

// TagCommit returns the peeled commit for a tag.
func (r *ExecRepository) TagCommit(tag string) (string, error) {
	commit, err := r.peel("refs/tags/" + tag)
	if err != nil {
		return "", fmt.Errorf("%w: tag %q", ErrRefNotFound, tag)
	}
	return commit, nil
}

// peel resolves a rev to the commit it points at, dereferencing annotated tags.
func (r *ExecRepository) peel(rev string) (string, error) {
	return r.runGitOutput("rev-parse", "--verify", rev+"^{commit}")
}

// MergedTags returns the tags reachable from branch in ancestry order,
// oldest first. git tag --merged reports lexical order, so the tags are
// re-ordered by their commit's position in the branch's rev-list.
func (r *ExecRepository) MergedTags(branch string) ([]Tag, error) {
	ref, err := r.BranchRef(branch)
	if err != nil {
		return nil, err
	}

	output, err := r.runGitOutput("tag", "--merged", ref)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return nil, nil
	}

	commits, err := r.RevList(ref)
	if err != nil {
		return nil, err
	}
	// rev-list is newest first; lower index means newer.
	position := make(map[string]int, len(commits))
	for i, c := range commits {
		position[c] = i
	}

	var tags []Tag
	for name := range strings.SplitSeq(output, "\n") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		commit, err := r.TagCommit(name)
		if err != nil {
			return nil, err
		}
		if _, ok := position[commit]; ok {
			tags = append(tags, Tag{Name: name, Commit: commit})
		}
	}

	sort.SliceStable(tags, func(i, j int) bool {
		pi, pj := position[tags[i].Commit], position[tags[j].Commit]
		if pi != pj {
			return pi > pj // older commits sort first
		}
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

// RevList returns the commits selected by a revision range, newest first.
func (r *ExecRepository) RevList(selection string) ([]string, error) {
	output, err := r.runGitOutput("rev-list", selection)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return nil, nil
	}
	return strings.Split(output, "\n"), nil
}

// ReadFile returns the content of path at the given commit.
func (r *ExecRepository) ReadFile(commit, path string) ([]byte, error) {
	//nolint:gosec // G204: args come from controlled sources
	cmd := exec.Command("git", "show", commit+":"+path)
	cmd.Dir = r.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, parseGitError([]string{"show"}, msg, err)
		}
		return nil, fmt.Errorf("git show %s:%s: %w", commit, path, err)
	}

	return stdout.Bytes(), nil
}

// IsDir reports whether path at commit is a tree object.
func (r *ExecRepository) IsDir(commit, path string) (bool, error) {
	// git expects the repository root to be spelled with a trailing slash.
	if path == "" || path == "." {
		path = "./"
	}
	output, err := r.runGitOutput("cat-file", "-t", commit+":"+path)
	if err != nil {
		return false, nil //nolint:nilerr // missing object means not a directory
	}
	return output == "tree", nil
}

// isCommitish reports whether rev plausibly names a commit by hash.
func isCommitish(rev string) bool {
	if len(rev) < 7 || len(rev) > 40 {
		return false
	}
	for _, c := range rev {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
