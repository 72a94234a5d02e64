// Package fetch turns release URLs into local repository snapshots. The URL
// scheme selects the transport: "git+https" clones over https, "git+file"
// opens a local clone, "file" points at a plain directory. Clones are cached
// per process so one registry build clones each repository once.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/sciworks/appreg/internal/cachemanager"
	"github.com/sciworks/appreg/internal/gitrepo"
	"github.com/sciworks/appreg/internal/log"
)

// ErrUnsupportedScheme indicates a release URL scheme with no transport.
var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Snapshot is a locally available copy of a release source. Repo is nil when
// the source is a plain directory rather than a git repository.
type Snapshot struct {
	Repo gitrepo.RepositoryView
	Dir  string
}

// Fetcher fetches release sources, caching git clones for its lifetime.
type Fetcher struct {
	baseDir string
	clones  *cachemanager.InMemoryCacheManager[string, string] // clone url -> dir
}

// New creates a fetcher with a fresh temporary directory for clones.
func New() (*Fetcher, error) {
	baseDir, err := os.MkdirTemp("", "appreg-clones-")
	if err != nil {
		return nil, fmt.Errorf("creating clone directory: %w", err)
	}
	return &Fetcher{
		baseDir: baseDir,
		clones: cachemanager.NewInMemoryCacheManager[string, string](
			"clones", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval),
	}, nil
}

// Fetch makes the source behind rawURL available locally. rawURL must be a
// base repository URL, with any release line already split off.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Snapshot, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Snapshot{}, fmt.Errorf("unparsable url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "git+https", "git+http":
		return f.clone(ctx, strings.TrimPrefix(rawURL, "git+"))
	case "git+file":
		dir := localPath(u)
		if _, err := os.Stat(dir); err != nil {
			return Snapshot{}, fmt.Errorf("local repository %s: %w", dir, err)
		}
		return Snapshot{Repo: gitrepo.NewExecRepository(dir), Dir: dir}, nil
	case "file", "":
		dir := localPath(u)
		info, err := os.Stat(dir)
		if err != nil {
			return Snapshot{}, fmt.Errorf("local path %s: %w", dir, err)
		}
		if !info.IsDir() {
			return Snapshot{}, fmt.Errorf("local path %s is not a directory", dir)
		}
		return Snapshot{Dir: dir}, nil
	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

// Close removes all clones made by this fetcher.
func (f *Fetcher) Close() error {
	f.clones.Flush(context.Background())
	return os.RemoveAll(f.baseDir)
}

func (f *Fetcher) clone(ctx context.Context, cloneURL string) (Snapshot, error) {
	if dir, ok := f.clones.Get(ctx, cloneURL); ok {
		return Snapshot{Repo: gitrepo.NewExecRepository(dir), Dir: dir}, nil
	}

	dir := filepath.Join(f.baseDir, uuid.NewString())
	log.Info(log.CatFetch, "cloning repository", "url", cloneURL, "dir", dir)

	repo, err := gitrepo.Clone(cloneURL, dir)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cloning %s: %w", cloneURL, err)
	}

	f.clones.Set(ctx, cloneURL, dir, cachemanager.NoExpiration)
	return Snapshot{Repo: repo, Dir: dir}, nil
}

// localPath extracts the filesystem path from a file-like URL, keeping
// relative opaque paths ("git+file:relative/clone") intact.
func localPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	return u.Path
}
