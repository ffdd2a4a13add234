package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPipedSFTPProvider runs an sftp server in process, talking to the client
// over a pair of pipes.
func newPipedSFTPProvider(t *testing.T) (*SFTPProvider, string) {
	clientRead, serverWrite := io.Pipe()
	serverRead, clientWrite := io.Pipe()

	server, err := sftp.NewServer(struct {
		io.Reader
		io.WriteCloser
	}{serverRead, serverWrite})
	require.NoError(t, err)
	go func() { _ = server.Serve() }()

	client, err := sftp.NewClientPipe(clientRead, clientWrite)
	require.NoError(t, err)

	root := t.TempDir()
	p := NewSFTPProvider(client, root, "chunked_uploads")

	t.Cleanup(func() {
		_ = server.Close()
		_ = p.Close()
	})

	return p, root
}

func TestSFTPProviderAllocateAppendSize(t *testing.T) {
	ctx := context.Background()
	p, root := newPipedSFTPProvider(t)

	ref, err := p.Allocate(ctx, "u1", "remote.dat")
	require.NoError(t, err)
	assert.Equal(t, "sftp://chunked_uploads/u1-remote.part", ref)

	require.NoError(t, p.Append(ctx, ref, []byte("first,")))
	require.NoError(t, p.Append(ctx, ref, []byte("second")))

	size, err := p.Size(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(12), size)

	contents, err := os.ReadFile(filepath.Join(root, "chunked_uploads", "u1-remote.part"))
	require.NoError(t, err)
	assert.Equal(t, "first,second", string(contents))
}

func TestSFTPProviderDelete(t *testing.T) {
	ctx := context.Background()
	p, root := newPipedSFTPProvider(t)

	ref, err := p.Allocate(ctx, "u2", "gone.dat")
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, ref))
	_, err = os.Stat(filepath.Join(root, "chunked_uploads", "u2-gone.part"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, p.Delete(ctx, ref))
}
