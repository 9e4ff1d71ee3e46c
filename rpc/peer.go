package rpc

import (
	"context"
	"encoding/json"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/rpcerrors"
)

// Peer is the caller façade for the remote side's routes (spec §4.6, C6).
// It is the Go-idiomatic, statically-typed stand-in for the spec's dynamic
// `procs`/`streamers` accessors (§9's "generate the facade at build time...
// or expose a typed call/stream pair" note): Peer.Call is the "call" half
// and Peer.Stream is the "stream" half.
//
// A Connection implements exactly one side's handlers; its Peer always
// targets the other side, so a server-side Connection's Peer is the
// client-invocation surface a streamer handler uses for a mid-stream
// callback.
type Peer struct {
	conn *Connection
	side frame.Side
}

// Call invokes the remote unary procedure name with args, unmarshalling its
// result into out (which should be a pointer). Errors classify as
// rpcerrors.ErrNoSuchRoute, rpcerrors.ErrValidation,
// rpcerrors.ErrConnectionClosed, or rpcerrors.ErrRemote (spec §4.6 step 6),
// except that ctx.Err() is returned if ctx is done first, a failing
// transport Send is returned as is, and a result that cannot be
// unmarshalled into out yields the json error.
func (p *Peer) Call(ctx context.Context, name string, args any, out any) error {
	var r, ok = p.conn.catalog.Lookup(p.side, frame.KindProc, name)
	if !ok {
		return rpcerrors.NoSuchRoute(string(p.side) + ".procs." + name)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return rpcerrors.Validation(err.Error())
	}
	validated, err := r.In(raw)
	if err != nil {
		return rpcerrors.Validation(err.Error())
	}

	var reqID = p.conn.corr.allocID()
	var resultCh = p.conn.corr.registerUnary(reqID)

	if err := p.conn.sendFrame(frame.NewRPC(p.side, frame.KindProc, reqID, name, validated)); err != nil {
		p.conn.corr.delete(reqID)
		return err
	}

	select {
	case res := <-resultCh:
		if res.err != nil {
			return res.err
		}
		var data = res.data
		if p.conn.revalidateResults {
			if data, err = r.Out(data); err != nil {
				return rpcerrors.Validation(err.Error())
			}
		}
		if out == nil || len(data) == 0 {
			return nil
		}
		return json.Unmarshal(data, out)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stream invokes the remote streamer name with args and returns its
// InboundStream (spec §4.6 streamer call). The caller must eventually call
// Close to release resources if it stops consuming before the stream
// terminates naturally.
func (p *Peer) Stream(ctx context.Context, name string, args any) (*InboundStream, error) {
	var r, ok = p.conn.catalog.Lookup(p.side, frame.KindStreamer, name)
	if !ok {
		return nil, rpcerrors.NoSuchRoute(string(p.side) + ".streamers." + name)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, rpcerrors.Validation(err.Error())
	}
	validated, err := r.In(raw)
	if err != nil {
		return nil, rpcerrors.Validation(err.Error())
	}

	var reqID = p.conn.corr.allocID()
	var stream = p.conn.corr.registerStream(reqID, r.Out, p.conn.maxInboundChunkBuffer, p.conn.dropOnBackpressure)

	if err := p.conn.sendFrame(frame.NewRPC(p.side, frame.KindStreamer, reqID, name, validated)); err != nil {
		p.conn.corr.delete(reqID)
		return nil, err
	}
	return stream, nil
}
