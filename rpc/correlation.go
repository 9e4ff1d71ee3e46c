package rpc

import (
	"encoding/json"
	"sync"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/route"
)

// callResult is the outcome of a unary call, delivered once on resultCh.
type callResult struct {
	data json.RawMessage
	err  error
}

// pendingCall is one Correlation Table entry (spec §3, C3): either a unary
// call awaiting its single rpc-res, or a stream call whose InboundStream is
// fed by subsequent stream-chunk/stream-end/stream-error frames. The
// outValidator for a stream call lives on its InboundStream, which applies
// it to every chunk (spec §4.4); a unary call's outValidator is held by its
// own Peer.Call frame, which re-validates the single result it receives.
type pendingCall struct {
	result chan callResult // non-nil for unary calls
	stream *InboundStream  // non-nil for stream calls
}

// correlationTable is the per-connection, originator-side map from
// in-flight reqId to its completion machinery (spec §3, §4.3). It is
// guarded by a single mutex rather than pinned to a goroutine, since
// entries are touched both by whichever goroutine issued the call and by
// the connection's single receive loop.
type correlationTable struct {
	mu      sync.Mutex
	entries map[uint64]*pendingCall
	nextID  uint64
	send    func(*frame.Frame) error
}

func newCorrelationTable(send func(*frame.Frame) error) *correlationTable {
	return &correlationTable{entries: make(map[uint64]*pendingCall), send: send}
}

// allocID returns the next request id for an outbound call from this
// connection. IDs are monotonic and never reused within the connection's
// lifetime (spec §8 invariant 2).
func (t *correlationTable) allocID() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	return t.nextID
}

func (t *correlationTable) registerUnary(reqID uint64) chan callResult {
	var ch = make(chan callResult, 1)
	t.mu.Lock()
	t.entries[reqID] = &pendingCall{result: ch}
	t.mu.Unlock()
	return ch
}

func (t *correlationTable) registerStream(reqID uint64, out route.Validator, maxLen int, dropOnFull bool) *InboundStream {
	var s = newInboundStream(out, maxLen, dropOnFull, func() { t.cancelStream(reqID) })
	t.mu.Lock()
	t.entries[reqID] = &pendingCall{stream: s}
	t.mu.Unlock()
	return s
}

func (t *correlationTable) lookup(reqID uint64) (*pendingCall, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.entries[reqID]
	return c, ok
}

func (t *correlationTable) delete(reqID uint64) {
	t.mu.Lock()
	delete(t.entries, reqID)
	t.mu.Unlock()
}

// resolveUnary delivers a terminal rpc-res to the unary call's waiter and
// removes its Correlation Table entry. An rpc-res addressed to a stream
// entry is the optional streaming acknowledgement (spec §4.5 step 5): it
// carries no terminal meaning for a stream, so the entry is left in place
// for the stream-chunk/stream-end/stream-error frames that follow.
func (t *correlationTable) resolveUnary(reqID uint64, data json.RawMessage, err error) {
	t.mu.Lock()
	c, ok := t.entries[reqID]
	if ok && c.result != nil {
		delete(t.entries, reqID)
	}
	t.mu.Unlock()
	if !ok || c.result == nil {
		return
	}
	c.result <- callResult{data: data, err: err}
}

// pushStreamChunk hands an inbound chunk to an in-flight stream call. The
// chunk is run through the route's outValidator inside InboundStream.push,
// not here.
func (t *correlationTable) pushStreamChunk(reqID uint64, chunk json.RawMessage) {
	c, ok := t.lookup(reqID)
	if !ok || c.stream == nil {
		return
	}
	c.stream.push(chunk)
}

// endStream marks a stream call as cleanly complete and removes its entry.
func (t *correlationTable) endStream(reqID uint64) {
	t.mu.Lock()
	c, ok := t.entries[reqID]
	if ok {
		delete(t.entries, reqID)
	}
	t.mu.Unlock()
	if ok && c.stream != nil {
		c.stream.end()
	}
}

// failStream marks a stream call as terminally failed and removes its entry.
func (t *correlationTable) failStream(reqID uint64, err error) {
	t.mu.Lock()
	c, ok := t.entries[reqID]
	if ok {
		delete(t.entries, reqID)
	}
	t.mu.Unlock()
	if ok && c.stream != nil {
		c.stream.fail(err)
	}
}

// cancelStream is invoked by an InboundStream.Close(): it sends a single
// stream-cancel frame and removes the Correlation Table entry so that any
// further inbound frames for this reqId are silently dropped (spec §4.4).
func (t *correlationTable) cancelStream(reqID uint64) {
	t.mu.Lock()
	_, ok := t.entries[reqID]
	if ok {
		delete(t.entries, reqID)
	}
	t.mu.Unlock()
	if ok && t.send != nil {
		_ = t.send(frame.NewStreamCancel(reqID))
	}
}

// closeAll fails every outstanding entry with err exactly once (spec §4.7,
// §8 invariant 5), draining the table.
func (t *correlationTable) closeAll(err error) {
	t.mu.Lock()
	var entries = t.entries
	t.entries = make(map[uint64]*pendingCall)
	t.mu.Unlock()

	for _, c := range entries {
		if c.result != nil {
			c.result <- callResult{err: err}
		}
		if c.stream != nil {
			c.stream.fail(err)
		}
	}
}
