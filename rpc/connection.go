package rpc

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/route"
	"github.com/qpwo/duplexrpc/rpcerrors"
)

// connState is the Connection Engine's lifecycle (spec §4.7, §8 invariant 5):
// opening -> open -> closing -> closed. It only ever moves forward.
type connState int32

const (
	stateOpening connState = iota
	stateOpen
	stateClosing
	stateClosed
)

// Connection is the Connection Engine (spec §4.7, C7): it owns the Conn,
// drives the single receive loop that feeds the Correlation Table and the
// Inbound Dispatcher, and sequences teardown the way the teacher's
// consumer.Service.QueueTasks sequences graceful shutdown — stop admitting
// new work, let what's in flight drain or be cancelled, then close the
// transport.
type Connection struct {
	conn     Conn
	side     frame.Side // the side whose routes this Connection dispatches inbound calls to
	catalog  *route.Catalog
	handlers *Handlers
	mw       []Middleware
	log      *logrus.Entry

	corr *correlationTable
	peer *Peer

	revalidateResults     bool
	maxInboundChunkBuffer int
	dropOnBackpressure    bool

	onOpen  func(*Connection)
	onClose func(*Connection, error)

	sendMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[uint64]context.CancelFunc

	state     int32 // connState, accessed atomically
	closeOnce sync.Once
	doneCh    chan struct{}
	closeErr  error

	// ID uniquely identifies this Connection for log correlation across a
	// process handling many concurrent connections, the way docker-compose
	// mints a uuid.New() per context/session rather than reusing a
	// caller-supplied name that might collide.
	ID uuid.UUID
}

// New constructs a Connection bound to conn, dispatching inbound calls
// addressed to localSide against catalog and handlers. Call Serve to start
// the receive loop; Serve blocks until the connection closes.
func New(conn Conn, localSide frame.Side, catalog *route.Catalog, handlers *Handlers, opts ...Option) *Connection {
	var id = uuid.New()
	var c = &Connection{
		conn:                  conn,
		side:                  localSide,
		catalog:               catalog,
		handlers:              handlers,
		maxInboundChunkBuffer: 0, // unbounded by default, spec §4.4
		revalidateResults:     true,
		inflight:              make(map[uint64]context.CancelFunc),
		doneCh:                make(chan struct{}),
		ID:                    id,
		log:                   logrus.WithFields(logrus.Fields{"side": string(localSide), "conn": id}),
	}
	for _, o := range opts {
		o(c)
	}
	if handlers == nil {
		c.handlers = NewHandlers()
	}
	c.corr = newCorrelationTable(c.sendFrame)
	c.peer = &Peer{conn: c, side: otherSide(localSide)}
	return c
}

func otherSide(s frame.Side) frame.Side {
	if s == frame.SideServer {
		return frame.SideClient
	}
	return frame.SideServer
}

// Peer returns the caller façade for the remote side's routes.
func (c *Connection) Peer() *Peer { return c.peer }

// Done returns a channel closed once the Connection has fully torn down.
func (c *Connection) Done() <-chan struct{} { return c.doneCh }

func (c *Connection) getState() connState { return connState(atomic.LoadInt32(&c.state)) }

// Serve runs the Connection's single receive loop until the transport fails
// or Close is called. It always returns the reason the connection ended
// (io.EOF from a graceful peer close is not an error from Serve's
// perspective — callers that care can compare to io.EOF themselves).
func (c *Connection) Serve() error {
	atomic.StoreInt32(&c.state, int32(stateOpen))
	if c.onOpen != nil {
		c.onOpen(c)
	}

	var recvErr error
	for {
		b, err := c.conn.Recv()
		if err != nil {
			recvErr = err
			break
		}
		f, err := frame.Decode(b)
		if err != nil {
			c.log.WithError(err).Warn("rpc: discarding undecodable frame")
			continue
		}
		c.handleFrame(f)
	}

	c.teardown(recvErr)
	return recvErr
}

// handleFrame routes one inbound frame. rpc frames are dispatched on their
// own goroutine so a slow or blocking handler never stalls the receive loop
// (spec §4.5: "concurrent dispatch"); every other frame type only ever
// touches in-memory bookkeeping and is handled inline.
func (c *Connection) handleFrame(f *frame.Frame) {
	switch f.Type {
	case frame.TypeRPC:
		go c.dispatch(f)
	case frame.TypeRPCResult:
		if f.OK {
			c.corr.resolveUnary(f.ReqID, f.Data, nil)
		} else {
			c.corr.resolveUnary(f.ReqID, nil, rpcerrors.Remote(f.Error))
		}
	case frame.TypeStreamChunk:
		c.corr.pushStreamChunk(f.ReqID, f.Chunk)
	case frame.TypeStreamEnd:
		c.corr.endStream(f.ReqID)
	case frame.TypeStreamError:
		c.corr.failStream(f.ReqID, rpcerrors.Remote(f.Error))
	case frame.TypeStreamCancel:
		c.cancelInflight(f.ReqID)
	default:
		c.log.WithField("type", f.Type).Warn("rpc: unhandled frame type")
	}
}

// sendFrame encodes and writes f. Writers never interleave: both the receive
// loop's dispatcher goroutines and outbound Peer calls serialize through
// sendMu, since a Conn's Send must not interleave partial frames from
// concurrent callers.
func (c *Connection) sendFrame(f *frame.Frame) error {
	if c.getState() >= stateClosing {
		return rpcerrors.ErrConnectionClosed
	}
	b, err := frame.Encode(f)
	if err != nil {
		return err
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.conn.Send(b)
}

func (c *Connection) registerInflight(reqID uint64, cancel context.CancelFunc) {
	c.inflightMu.Lock()
	c.inflight[reqID] = cancel
	c.inflightMu.Unlock()
}

func (c *Connection) unregisterInflight(reqID uint64) {
	c.inflightMu.Lock()
	delete(c.inflight, reqID)
	c.inflightMu.Unlock()
}

func (c *Connection) cancelInflight(reqID uint64) {
	c.inflightMu.Lock()
	cancel, ok := c.inflight[reqID]
	delete(c.inflight, reqID)
	c.inflightMu.Unlock()
	if ok {
		cancel()
	}
}

// Close begins graceful teardown: it stops the transport, which unblocks the
// receive loop's Recv and drives it through teardown. Close is idempotent
// and safe to call from any goroutine, including a handler's own Context.
func (c *Connection) Close() error {
	atomic.StoreInt32(&c.state, int32(stateClosing))
	return c.conn.Close()
}

// teardown fails every outstanding call and cancels every in-flight
// dispatch exactly once, mirroring consumer.Service.QueueTasks's
// GracefulStop ordering: stop admitting (state -> closing), drain/cancel
// what's in flight, then release the transport (spec §4.7, §8 invariant 5).
func (c *Connection) teardown(cause error) {
	c.closeOnce.Do(func() {
		// An explicit Close has already moved the state to closing; the
		// Recv error it provoked is then not reported as the cause.
		if c.getState() >= stateClosing {
			cause = nil
		}
		atomic.StoreInt32(&c.state, int32(stateClosing))

		c.inflightMu.Lock()
		var cancels = c.inflight
		c.inflight = make(map[uint64]context.CancelFunc)
		c.inflightMu.Unlock()
		for _, cancel := range cancels {
			cancel()
		}

		// Every outstanding call fails with ErrConnectionClosed regardless of
		// the transport-level cause (io.EOF, a read error, ...): that detail
		// belongs to onClose/logging, not to callers waiting on a result.
		c.corr.closeAll(rpcerrors.ErrConnectionClosed)

		var result *multierror.Error
		if err := c.conn.Close(); err != nil {
			result = multierror.Append(result, err)
		}

		atomic.StoreInt32(&c.state, int32(stateClosed))
		c.closeErr = result.ErrorOrNil()
		if c.onClose != nil {
			c.onClose(c, cause)
		}
		close(c.doneCh)
	})
}
