package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteBranchHead(t *testing.T) {
	origin, cleanup := tempDir(t)
	defer cleanup()
	createOrigin(t, origin)

	rev, err := RemoteBranchHead(context.Background(), origin, "main")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, headOf(t, origin), rev)

	// An absent branch is not an error; there is just no head.
	rev, err = RemoteBranchHead(context.Background(), origin, "gone")
	if err != nil {
		t.Fatal(err)
	}
	assert.Empty(t, rev)
}
