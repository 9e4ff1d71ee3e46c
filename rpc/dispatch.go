package rpc

import (
	"context"
	"encoding/json"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/route"
	"github.com/qpwo/duplexrpc/rpcerrors"
)

// dispatch resolves one inbound rpc frame to a local handler and drives it
// to completion, emitting the appropriate rpc-res/stream-chunk/stream-end/
// stream-error frames (spec §4.5, C5). It runs on its own goroutine, spawned
// by Connection.handleFrame for every inbound rpc frame.
func (c *Connection) dispatch(f *frame.Frame) {
	var kind = frame.KindProc
	if f.Streaming {
		kind = frame.KindStreamer
	}

	if f.Side != c.side {
		c.replyWrongSide(f, kind)
		return
	}

	r, ok := c.catalog.Lookup(c.side, kind, f.Method)
	if !ok {
		c.replyError(f, kind, rpcerrors.NoSuchRoute(string(c.side)+"."+string(kind)+"s."+f.Method).Error())
		return
	}

	args, err := r.In(f.Args)
	if err != nil {
		c.replyError(f, kind, err.Error())
		return
	}

	var dispatchCtx, cancel = context.WithCancel(context.Background())
	c.registerInflight(f.ReqID, cancel)
	defer func() {
		c.unregisterInflight(f.ReqID)
		cancel()
	}()

	var ctx = &Context{Context: dispatchCtx, Conn: c, ReqID: f.ReqID}

	if kind == frame.KindProc {
		c.dispatchProc(ctx, f, r.Out, args)
		return
	}
	c.dispatchStream(ctx, f, r.Out, args)
}

func (c *Connection) replyWrongSide(f *frame.Frame, kind frame.Kind) {
	c.replyError(f, kind, "WrongSide")
}

func (c *Connection) replyError(f *frame.Frame, kind frame.Kind, message string) {
	if kind == frame.KindProc {
		_ = c.sendFrame(frame.NewResultError(f.ReqID, message))
		return
	}
	_ = c.sendFrame(frame.NewStreamError(f.ReqID, message))
}

func (c *Connection) dispatchProc(ctx *Context, f *frame.Frame, out route.Validator, args json.RawMessage) {
	var handler, ok = c.handlers.Procs[f.Method]
	if !ok {
		c.replyError(f, frame.KindProc, rpcerrors.NoSuchRoute(string(c.side)+".procs."+f.Method).Error())
		return
	}

	var call = chain(c.mw, func(ctx *Context) error {
		result, err := handler(ctx, args)
		if err != nil {
			return err
		}
		validated, err := out(result)
		if err != nil {
			return rpcerrors.Validation(err.Error())
		}
		return c.sendFrame(frame.NewResult(f.ReqID, validated))
	})

	if err := call(ctx); err != nil {
		c.replyError(f, frame.KindProc, err.Error())
	}
}

func (c *Connection) dispatchStream(ctx *Context, f *frame.Frame, out route.Validator, args json.RawMessage) {
	var handler, ok = c.handlers.Streamers[f.Method]
	if !ok {
		c.replyError(f, frame.KindStreamer, rpcerrors.NoSuchRoute(string(c.side)+".streamers."+f.Method).Error())
		return
	}

	if err := c.sendFrame(frame.NewStreamAck(f.ReqID)); err != nil {
		return
	}

	var reported bool
	var yield = func(chunk json.RawMessage) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		validated, err := out(chunk)
		if err != nil {
			reported = true
			_ = c.sendFrame(frame.NewStreamError(f.ReqID, err.Error()))
			return rpcerrors.Validation(err.Error())
		}
		if err := c.sendFrame(frame.NewStreamChunk(f.ReqID, validated)); err != nil {
			reported = true
			return err
		}
		return nil
	}

	var call = chain(c.mw, func(ctx *Context) error { return handler(ctx, args, yield) })
	var err = call(ctx)

	if ctx.Err() != nil {
		// Cancelled mid-stream (spec §4.4/§9): the caller already discarded
		// this reqId, so no further frames are sent for it.
		return
	}
	if reported {
		return
	}
	if err != nil {
		_ = c.sendFrame(frame.NewStreamError(f.ReqID, err.Error()))
		return
	}
	_ = c.sendFrame(frame.NewStreamEnd(f.ReqID))
}
