package git

import (
	"errors"
)

var (
	ErrNoRemote    = errors.New("git remote URL is not configured")
	ErrNoGitClient = errors.New("git client not found on PATH")
	ErrWrongRemote = errors.New("existing working copy tracks a different remote")
	ErrBranchGone  = errors.New("configured branch does not exist on the remote")
)
