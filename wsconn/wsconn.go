// Package wsconn adapts a gorilla/websocket connection to rpc.Conn, so
// duplexrpc can run over a real network socket instead of rpc/rpctest's
// in-memory pipe. Frames are carried as WebSocket binary messages, one
// message per frame, following the wire convention of the pack's
// flowersec-go tunnel server (dst.ws.WriteMessage(websocket.BinaryMessage,
// frame) / src.ws.ReadMessage()).
package wsconn

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Upgrader is the shared gorilla/websocket.Upgrader used by Accept. Buffer
// sizes and CheckOrigin can be overridden by callers before the first Accept.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Conn adapts a *websocket.Conn to rpc.Conn. Send serializes concurrent
// writers with a mutex, since gorilla/websocket requires at most one writer
// at a time but duplexrpc's Connection may call Send from more than one
// goroutine (an outbound Peer call racing the receive loop's own replies).
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	// WriteTimeout bounds each outbound frame write, if non-zero.
	WriteTimeout time.Duration
}

// New wraps an already-established *websocket.Conn.
func New(ws *websocket.Conn) *Conn { return &Conn{ws: ws} }

// Dial opens a new client-side WebSocket connection to url and wraps it.
func Dial(url string, header http.Header) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		return nil, errors.Wrap(err, "wsconn: dial")
	}
	return New(ws), nil
}

// Accept upgrades an inbound HTTP request to a WebSocket and wraps it.
func Accept(w http.ResponseWriter, r *http.Request, responseHeader http.Header) (*Conn, error) {
	ws, err := Upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		return nil, errors.Wrap(err, "wsconn: upgrade")
	}
	return New(ws), nil
}

// Send implements rpc.Conn: it writes one binary WebSocket message per
// frame, matching the tunnel server's one-record-per-message convention.
func (c *Conn) Send(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.WriteTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.WriteTimeout))
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return errors.Wrap(err, "wsconn: write")
	}
	return nil
}

// Recv implements rpc.Conn: it reads the next complete binary message. A
// non-binary message is a protocol error, reported as a plain error (the
// Connection's receive loop tears down on any Recv error, per spec
// §4.1/§7).
func (c *Conn) Recv() ([]byte, error) {
	mt, b, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.BinaryMessage {
		return nil, errors.Errorf("wsconn: unexpected WebSocket message type %d", mt)
	}
	return b, nil
}

// Close implements rpc.Conn.
func (c *Conn) Close() error {
	return c.ws.Close()
}
