package rdma

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

var errDialRefused = errors.New("dial refused")

// newTCPLoopback starts a TCPFabric server for region on a loopback
// listener and returns a client fabric dialing straight to it.
func newTCPLoopback(t *testing.T, region []byte) (*TCPFabric, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewTCPFabric(1, nil)
	go server.Serve(ln, region)

	client := NewTCPFabric(0, func(peer int) (net.Conn, error) {
		return net.Dial("tcp", ln.Addr().String())
	})

	return client, func() { ln.Close() }
}

func TestTCPFabricReadWriteRoundTrip(t *testing.T) {
	region := make([]byte, 64)
	client, closeFn := newTCPLoopback(t, region)
	defer closeFn()

	ctx := context.Background()
	require.NoError(t, client.Write(ctx, 1, 4, []byte("hello")))

	out := make([]byte, 5)
	require.NoError(t, client.Read(ctx, 1, 4, out))
	require.Equal(t, "hello", string(out))
}

func TestTCPFabricOutOfBoundsErrors(t *testing.T) {
	region := make([]byte, 16)
	client, closeFn := newTCPLoopback(t, region)
	defer closeFn()

	ctx := context.Background()
	err := client.Write(ctx, 1, 10, make([]byte, 10))
	require.Error(t, err)

	err = client.Read(ctx, 1, 10, make([]byte, 10))
	require.Error(t, err)
}

func TestTCPFabricSelf(t *testing.T) {
	client := NewTCPFabric(5, nil)
	require.Equal(t, 5, client.Self())
}

func TestTCPFabricDialFailureWrapsUnreachable(t *testing.T) {
	client := NewTCPFabric(0, func(peer int) (net.Conn, error) {
		return nil, errDialRefused
	})

	err := client.Read(context.Background(), 7, 0, make([]byte, 4))
	require.Error(t, err)
	var unreachable *UnreachablePeerError
	require.ErrorAs(t, err, &unreachable)
	require.Equal(t, 7, unreachable.Peer)
}
