package git

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeURL(t *testing.T) {
	const password = "abc123"
	for _, url := range []string{
		"git@github.com:example/flaskapp",
		"https://user@example.com:5050/repo.git",
		"https://user:" + password + "@example.com:5050/repo.git",
	} {
		u := Remote{url}
		if strings.Contains(u.SafeURL(), password) {
			t.Errorf("Safe URL for %s contains password %q", url, password)
		}
	}
}

func TestEquivalent(t *testing.T) {
	urls := []struct {
		remote     string
		equivalent string
		equal      bool
	}{
		{"git@github.com:example/flaskapp", "ssh://git@github.com/example/flaskapp.git", true},
		{"https://git@github.com/example/flaskapp.git", "ssh://git@github.com/example/flaskapp.git", true},
		{"https://github.com/example/flaskapp.git", "git@github.com:example/flaskapp.git", true},
		{"https://github.com/example/flaskapp.git", "https://github.com/example/otherapp.git", false},
	}

	for _, u := range urls {
		r := Remote{u.remote}
		assert.Equal(t, u.equal, r.Equivalent(u.equivalent))
	}
}
