package rpc

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/qpwo/duplexrpc/route"
	"github.com/qpwo/duplexrpc/rpcerrors"
)

// streamItem is one entry of an InboundStream's FIFO: either a chunk that
// has already passed the route's outValidator, or a terminal signal (io.EOF
// for a clean stream-end, or any other error for stream-error/
// ConnectionClosed/validation failure).
type streamItem struct {
	chunk json.RawMessage
	err   error
}

// InboundStream adapts inbound stream-chunk/stream-end/stream-error frames
// for one reqId into a lazy, single-consumer, cancellable sequence (spec
// §4.4, C4). It mirrors the state machine of the teacher's
// broker/client.Reader: lazily pulled, invalidated by its first terminal
// error, with end-of-stream modeled as io.EOF.
type InboundStream struct {
	mu         sync.Mutex
	items      []streamItem
	terminated bool
	wake       chan struct{}
	space      chan struct{}

	out        route.Validator
	maxLen     int
	dropOnFull bool

	cancelOnce sync.Once
	cancelFn   func()
}

func newInboundStream(out route.Validator, maxLen int, dropOnFull bool, cancelFn func()) *InboundStream {
	return &InboundStream{
		wake:       make(chan struct{}, 1),
		space:      make(chan struct{}, 1),
		out:        out,
		maxLen:     maxLen,
		dropOnFull: dropOnFull,
		cancelFn:   cancelFn,
	}
}

func (s *InboundStream) notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// push runs chunk through the route's outValidator and enqueues it. Called
// only from the Connection's single receive loop. A failing validation
// converts to a local terminal ValidationError without ever reaching the
// peer (spec §4.4): the sender already believes its chunk was delivered, so
// the failure is the consuming side's alone to observe via Next.
//
// If a bounded buffer is full, push either blocks (default, applying
// backpressure to the peer's TCP window by stalling the receive loop) or
// converts this chunk into a terminal BackpressureDropped error, per the
// mode selected at call time (spec §4.4, §9).
func (s *InboundStream) push(chunk json.RawMessage) {
	validated, err := s.out(chunk)
	if err != nil {
		s.terminate(rpcerrors.Validation(err.Error()))
		return
	}
	chunk = validated

	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	if s.maxLen > 0 && len(s.items) >= s.maxLen {
		if s.dropOnFull {
			s.items = append(s.items, streamItem{err: rpcerrors.ErrBackpressureDropped})
			s.terminated = true
			s.mu.Unlock()
			s.notify(s.wake)
			return
		}
		for s.maxLen > 0 && len(s.items) >= s.maxLen && !s.terminated {
			s.mu.Unlock()
			<-s.space
			s.mu.Lock()
		}
		if s.terminated {
			s.mu.Unlock()
			return
		}
	}
	s.items = append(s.items, streamItem{chunk: chunk})
	s.mu.Unlock()
	s.notify(s.wake)
}

// end enqueues the clean-termination signal.
func (s *InboundStream) end() { s.terminate(io.EOF) }

// fail enqueues a terminal error (RemoteError, ConnectionClosed, etc.).
func (s *InboundStream) fail(err error) { s.terminate(err) }

func (s *InboundStream) terminate(err error) {
	s.mu.Lock()
	if s.terminated {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items, streamItem{err: err})
	s.terminated = true
	s.mu.Unlock()
	s.notify(s.wake)
}

// Next blocks until the next chunk, a clean end (io.EOF), or a terminal
// error is available, or ctx is done. Buffered chunks that precede a
// terminal frame are always drained first, since they were enqueued earlier
// in FIFO order by the single receive loop (spec §4.4: "errors drain first
// [...] then throw"). Once the terminal item is reached it is never removed
// from the queue, so a repeated call after the stream has ended keeps
// returning the same terminal result instead of blocking forever, matching
// the teacher's broker/client.Reader.
func (s *InboundStream) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.mu.Lock()
		if len(s.items) > 0 {
			var item = s.items[0]
			if item.err != nil {
				s.mu.Unlock()
				return item.chunk, item.err
			}
			s.items = s.items[1:]
			var wasFull = s.maxLen > 0 && len(s.items)+1 >= s.maxLen
			s.mu.Unlock()
			if wasFull {
				s.notify(s.space)
			}
			return item.chunk, item.err
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close cancels consumption of the stream: it sends a single stream-cancel
// frame to the peer (via cancelFn) and marks the stream terminated so that
// any further inbound frames for this reqId are silently dropped (spec
// §4.4). Close is idempotent.
func (s *InboundStream) Close() error {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.terminated = true
		s.mu.Unlock()
		s.notify(s.space)
		if s.cancelFn != nil {
			s.cancelFn()
		}
	})
	return nil
}
