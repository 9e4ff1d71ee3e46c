package lineconn_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qpwo/duplexrpc/lineconn"
)

func TestSendRecvRoundTrip(t *testing.T) {
	var clientSide, serverSide = net.Pipe()
	defer clientSide.Close()
	defer serverSide.Close()

	var client = lineconn.New(clientSide)
	var server = lineconn.New(serverSide)

	var done = make(chan error, 1)
	go func() { done <- client.Send([]byte(`{"type":"rpc"}`)) }()

	b, err := server.Recv()
	require.NoError(t, err)
	require.Equal(t, `{"type":"rpc"}`, string(b))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("send never completed")
	}
}

func TestRecvReturnsEOFOnClose(t *testing.T) {
	var clientSide, serverSide = net.Pipe()
	var client = lineconn.New(clientSide)
	require.NoError(t, serverSide.Close())

	_, err := client.Recv()
	require.ErrorIs(t, err, io.EOF)
}
