package git

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WorkingCopy is a local checkout of a remote repo at a branch. It is
// created on first ensure, mutated by subsequent ensures, and never
// destroyed by this package (except by FreshClone, whose whole point
// is to start over).
type WorkingCopy struct {
	Dir    string
	Remote Remote
	Branch string
}

// HeadRevision returns the revision (SHA1) at the tip of the working
// copy's branch.
func (wc *WorkingCopy) HeadRevision(ctx context.Context) (string, error) {
	return refRevision(ctx, wc.Dir, "heads/"+wc.Branch)
}

// EnsureStrategy produces a working copy of `remote` at `branch` in
// `dir`. The two implementations encode two different idempotency
// policies, and both are kept deliberately: one starts from scratch
// each time, the other reuses what is already there.
type EnsureStrategy interface {
	Name() string
	Ensure(ctx context.Context, remote Remote, branch, dir string) (*WorkingCopy, error)
}

// FreshClone discards any prior content of the target directory and
// clones anew. There is no conflict policy to speak of: whatever was
// there before is gone.
type FreshClone struct{}

func (FreshClone) Name() string { return "fresh-clone" }

func (s FreshClone) Ensure(ctx context.Context, remote Remote, branch, dir string) (wc *WorkingCopy, err error) {
	defer func() { recordEnsure(s.Name(), err) }()
	if remote.URL == "" {
		return nil, ErrNoRemote
	}
	if !Available() {
		return nil, ErrNoGitClient
	}
	if err := os.RemoveAll(dir); err != nil {
		return nil, errors.Wrap(err, "clearing checkout directory")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "creating checkout directory")
	}
	if _, err := clone(ctx, dir, remote.URL, branch); err != nil {
		return nil, err
	}
	return &WorkingCopy{Dir: dir, Remote: remote, Branch: branch}, nil
}

// MarkerCheck clones only if the directory carries no `.git` marker;
// otherwise it fetches, checks out the branch (creating it from the
// remote tracking ref if asked to), and pulls.
type MarkerCheck struct {
	// CreateMissingBranch makes a local branch from origin/<branch>
	// when the branch doesn't exist locally yet.
	CreateMissingBranch bool
}

func (MarkerCheck) Name() string { return "marker-check" }

func (m MarkerCheck) Ensure(ctx context.Context, remote Remote, branch, dir string) (wc *WorkingCopy, err error) {
	defer func() { recordEnsure(m.Name(), err) }()
	if remote.URL == "" {
		return nil, ErrNoRemote
	}
	if !Available() {
		return nil, ErrNoGitClient
	}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "inspecting checkout directory")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "creating checkout directory")
		}
		if _, err := clone(ctx, dir, remote.URL, branch); err != nil {
			return nil, err
		}
		return &WorkingCopy{Dir: dir, Remote: remote, Branch: branch}, nil
	}

	// The marker alone doesn't prove the checkout is ours; a working
	// copy of some other repository must not be fetched into.
	origin, err := remoteURL(ctx, dir)
	if err != nil {
		return nil, err
	}
	if !remote.Equivalent(origin) {
		return nil, ErrWrongRemote
	}

	if err := fetch(ctx, dir, "origin"); err != nil {
		return nil, err
	}

	ok, err := refExists(ctx, dir, "refs/heads/"+branch)
	if err != nil {
		return nil, err
	}
	onRemote, err := refExists(ctx, dir, "refs/remotes/origin/"+branch)
	if err != nil {
		return nil, err
	}
	switch {
	case ok:
		if err := checkout(ctx, dir, branch); err != nil {
			return nil, err
		}
	case m.CreateMissingBranch:
		// Prefer branching off the remote tracking ref; if the remote
		// doesn't have the branch either, branch off HEAD.
		start := ""
		if onRemote {
			start = "origin/" + branch
		}
		if err := createBranch(ctx, dir, branch, start); err != nil {
			return nil, err
		}
	default:
		return nil, ErrBranchGone
	}

	// Nothing to pull if the remote has no such branch yet.
	if onRemote {
		if err := pull(ctx, dir, "origin", branch); err != nil {
			return nil, err
		}
	}
	return &WorkingCopy{Dir: dir, Remote: remote, Branch: branch}, nil
}
