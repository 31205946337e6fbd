package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"fileplacer/internal/placement"
	"fileplacer/internal/safeio"
)

// Spec names where a repository comes from. Exactly one of URL or Path is used;
// URL wins when both are set.
type Spec struct {
	URL    string
	Branch string
	Path   string
	// ReposDir, when set, confines local paths to this base directory.
	ReposDir string
}

// Root is an acquired repository directory. Close must be called when the
// caller is done; for clones it removes the temporary checkout.
type Root struct {
	// Dir is the absolute directory to walk.
	Dir string
	// Name is the repository name reported to users.
	Name   string
	Remote bool

	cleanup  func() error
	once     sync.Once
	closeErr error
}

// NewRoot wraps an already-prepared directory. cleanup, if non-nil, runs on
// the first Close.
func NewRoot(dir, name string, remote bool, cleanup func() error) *Root {
	return &Root{Dir: dir, Name: name, Remote: remote, cleanup: cleanup}
}

// Close releases the root. It does the work once; later calls return the
// first result.
func (r *Root) Close() error {
	if r == nil {
		return nil
	}
	r.once.Do(func() {
		if r.cleanup != nil {
			r.closeErr = r.cleanup()
		}
	})
	return r.closeErr
}

// runGitCommand is injectable in tests.
var runGitCommand = func(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Acquire resolves a local path or shallow-clones a remote repository.
// A failed clone leaves nothing behind.
func Acquire(ctx context.Context, spec Spec) (*Root, error) {
	rawURL := strings.TrimSpace(spec.URL)
	local := strings.TrimSpace(spec.Path)
	switch {
	case rawURL != "":
		return clone(ctx, rawURL, strings.TrimSpace(spec.Branch))
	case local != "":
		return resolveLocal(local, strings.TrimSpace(spec.ReposDir))
	default:
		return nil, placement.ErrNoSource
	}
}

func clone(ctx context.Context, rawURL, branch string) (*Root, error) {
	name, err := RepoName(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(branch, "-") {
		return nil, fmt.Errorf("%w: invalid branch %q", placement.ErrInvalidInput, branch)
	}

	tmp, err := os.MkdirTemp("", "fileplacer-*")
	if err != nil {
		return nil, fmt.Errorf("source: create temp dir: %w", err)
	}
	cleanup := func() error { return os.RemoveAll(tmp) }

	target := filepath.Join(tmp, name)
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch, "--single-branch")
	}
	args = append(args, "--", rawURL, target)
	if err := runGitCommand(ctx, args...); err != nil {
		_ = cleanup()
		return nil, fmt.Errorf("source: clone %s: %w", rawURL, err)
	}
	return &Root{Dir: target, Name: name, Remote: true, cleanup: cleanup}, nil
}

func resolveLocal(p, reposDir string) (*Root, error) {
	if reposDir == "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		return statRoot(abs)
	}
	base, err := filepath.Abs(reposDir)
	if err != nil {
		return nil, err
	}
	// relative paths name a repository under the base
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(base, abs)
	}
	abs = filepath.Clean(abs)
	// compare resolved paths so a symlink under base cannot lead out of it
	realBase, err := filepath.EvalSymlinks(base)
	if err != nil {
		return nil, fmt.Errorf("%w: repos dir %s: %v", placement.ErrInvalidInput, base, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: repo path %s: %v", placement.ErrInvalidInput, abs, err)
	}
	if !safeio.Within(realBase, resolved) || resolved == realBase {
		return nil, fmt.Errorf("%w: root %s is outside allowed repos dir %s", placement.ErrInvalidInput, abs, base)
	}
	root, err := statRoot(resolved)
	if err != nil {
		return nil, err
	}
	root.Name = filepath.Base(abs)
	return root, nil
}

func statRoot(abs string) (*Root, error) {
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: repo path %s: %v", placement.ErrInvalidInput, abs, err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: repo path %s is not a directory", placement.ErrInvalidInput, abs)
	}
	return &Root{Dir: abs, Name: filepath.Base(abs)}, nil
}

// RepoName derives a single-segment directory name from a clone URL:
// https://host/owner/repo.git, git@host:owner/repo.git and plain paths.
func RepoName(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", placement.ErrNoSource
	}
	if strings.HasPrefix(raw, "-") {
		return "", fmt.Errorf("%w: invalid repo url %q", placement.ErrInvalidInput, raw)
	}

	p := raw
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	} else if i := strings.Index(raw, ":"); i > 0 && !strings.Contains(raw[:i], "/") {
		// scp-like syntax: user@host:owner/repo
		p = raw[i+1:]
	}
	p = strings.TrimRight(filepath.ToSlash(p), "/")
	p = strings.TrimSuffix(p, ".git")
	name := path.Base(p)
	if err := validateRepoDirName(name); err != nil {
		return "", fmt.Errorf("%w: cannot derive repo name from %q", placement.ErrInvalidInput, raw)
	}
	return name, nil
}

func validateRepoDirName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return errors.New("invalid repo name")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("repo name must be a single path segment")
	}
	return nil
}
