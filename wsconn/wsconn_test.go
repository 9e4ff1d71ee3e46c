package wsconn_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qpwo/duplexrpc/wsconn"
)

func TestSendRecvRoundTrip(t *testing.T) {
	var serverConn = make(chan *wsconn.Conn, 1)
	var mux = http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		c, err := wsconn.Accept(w, r, nil)
		require.NoError(t, err)
		serverConn <- c
	})
	var srv = httptest.NewServer(mux)
	defer srv.Close()

	var url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	client, err := wsconn.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	var server *wsconn.Conn
	select {
	case server = <-serverConn:
	case <-time.After(time.Second):
		t.Fatal("server never accepted")
	}
	defer server.Close()

	require.NoError(t, client.Send([]byte(`{"type":"rpc"}`)))
	b, err := server.Recv()
	require.NoError(t, err)
	require.Equal(t, `{"type":"rpc"}`, string(b))

	require.NoError(t, server.Send([]byte(`{"type":"rpc-res"}`)))
	b, err = client.Recv()
	require.NoError(t, err)
	require.Equal(t, `{"type":"rpc-res"}`, string(b))
}
