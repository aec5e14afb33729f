package root

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenTCP(t *testing.T) {
	t.Parallel()

	ln, err := listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, "tcp", ln.Addr().Network())
}

func TestListenUnixSocket(t *testing.T) {
	t.Parallel()

	sock := filepath.Join(t.TempDir(), "tux.sock")
	ln, err := listen("unix://" + sock)
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, "unix", ln.Addr().Network())
	assert.Equal(t, sock, ln.Addr().String())
}
