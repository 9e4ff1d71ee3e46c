package rpc_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/rpc"
	"github.com/qpwo/duplexrpc/rpc/rpctest"
	"github.com/qpwo/duplexrpc/rpcerrors"
	"github.com/qpwo/duplexrpc/route"
	"github.com/qpwo/duplexrpc/validate"
)

// rejectNegative is a typed validator used by the "square" route: it rejects
// negative numbers outright rather than merely reformatting them, matching
// the style of validate's JSONSchema/Legacy validators but without a schema
// document, for tests that don't want the jsonschema dependency in the loop.
func rejectNegative(v json.RawMessage) (json.RawMessage, error) {
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.New("must be non-negative")
	}
	return v, nil
}

func buildCatalog() *route.Catalog {
	return route.Build([]route.Route{
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "echo", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "square", In: rejectNegative, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "explode", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindStreamer, Name: "countUp", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindStreamer, Name: "forever", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideClient, Kind: frame.KindProc, Name: "approve", In: validate.Identity, Out: validate.Identity},
	})
}

// harness wires a server Connection and a client Connection over an
// in-memory Pipe pair and runs both receive loops, mirroring spec §8's seed
// scenarios end to end rather than unit-testing package internals.
type harness struct {
	server, client *rpc.Connection
}

func newHarness(t *testing.T, serverHandlers, clientHandlers *rpc.Handlers) *harness {
	t.Helper()
	var catalog = buildCatalog()
	var a, b = rpctest.NewPipe()
	var h = &harness{
		server: rpc.New(a, frame.SideServer, catalog, serverHandlers),
		client: rpc.New(b, frame.SideClient, catalog, clientHandlers),
	}
	go h.server.Serve()
	go h.client.Serve()
	t.Cleanup(func() {
		h.server.Close()
		h.client.Close()
	})
	return h
}

func TestEchoProc(t *testing.T) {
	var handlers = rpc.NewHandlers().Proc("echo", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
		var s string
		require.NoError(t, json.Unmarshal(args, &s))
		return json.Marshal(s + s)
	})
	var h = newHarness(t, handlers, nil)

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out string
	require.NoError(t, h.client.Peer().Call(ctx, "echo", "hi", &out))
	require.Equal(t, "hihi", out)
}

func TestTypedProcValidationFailure(t *testing.T) {
	var handlers = rpc.NewHandlers().Proc("square", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
		var n float64
		require.NoError(t, json.Unmarshal(args, &n))
		return json.Marshal(n * n)
	})
	var h = newHarness(t, handlers, nil)
	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out float64
	require.NoError(t, h.client.Peer().Call(ctx, "square", 4, &out))
	require.Equal(t, float64(16), out)

	var err = h.client.Peer().Call(ctx, "square", -1, &out)
	require.Error(t, err)
	require.True(t, rpcerrors.IsValidation(err))
}

func TestExplicitErrorSurface(t *testing.T) {
	var handlers = rpc.NewHandlers().Proc("explode", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
		return nil, errors.New("boom")
	})
	var h = newHarness(t, handlers, nil)
	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out any
	var err = h.client.Peer().Call(ctx, "explode", nil, &out)
	require.Error(t, err)
	require.True(t, rpcerrors.IsRemote(err))
	require.Equal(t, "boom", err.Error())
}

func TestBidirectionalStreamerWithCallback(t *testing.T) {
	var approved = make(chan int, 16)
	var clientHandlers = rpc.NewHandlers().Proc("approve", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
		var n int
		require.NoError(t, json.Unmarshal(args, &n))
		approved <- n
		return json.Marshal(true)
	})
	var serverHandlers = rpc.NewHandlers().Stream("countUp", func(ctx *rpc.Context, args json.RawMessage, yield func(json.RawMessage) error) error {
		var n int
		require.NoError(t, json.Unmarshal(args, &n))
		for i := 1; i <= n; i++ {
			var ok bool
			if err := ctx.Conn.Peer().Call(ctx, "approve", i, &ok); err != nil {
				return err
			}
			chunk, err := json.Marshal(i)
			if err != nil {
				return err
			}
			if err := yield(chunk); err != nil {
				return err
			}
		}
		return nil
	})
	var h = newHarness(t, serverHandlers, clientHandlers)

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var stream, err = h.client.Peer().Stream(ctx, "countUp", 3)
	require.NoError(t, err)
	defer stream.Close()

	var got []int
	for {
		chunk, err := stream.Next(ctx)
		if err != nil {
			break
		}
		var n int
		require.NoError(t, json.Unmarshal(chunk, &n))
		got = append(got, n)
	}
	require.Equal(t, []int{1, 2, 3}, got)
	require.Len(t, approved, 3)
}

func TestEarlyCancelMidStream(t *testing.T) {
	var cancelled = make(chan struct{})
	var serverHandlers = rpc.NewHandlers().Stream("forever", func(ctx *rpc.Context, args json.RawMessage, yield func(json.RawMessage) error) error {
		var i int
		for {
			i++
			chunk, _ := json.Marshal(i)
			if err := yield(chunk); err != nil {
				close(cancelled)
				return err
			}
		}
	})
	var h = newHarness(t, serverHandlers, nil)

	var ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var stream, err = h.client.Peer().Stream(ctx, "forever", nil)
	require.NoError(t, err)

	_, err = stream.Next(ctx)
	require.NoError(t, err)

	require.NoError(t, stream.Close())

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("handler was not cancelled")
	}
}

func TestDisconnectMidCall(t *testing.T) {
	var started = make(chan struct{})
	var handlers = rpc.NewHandlers().Proc("echo", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	var h = newHarness(t, handlers, nil)

	var ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var resultErr = make(chan error, 1)
	go func() {
		var out string
		resultErr <- h.client.Peer().Call(ctx, "echo", "hi", &out)
	}()

	<-started
	require.NoError(t, h.server.Close())

	select {
	case err := <-resultErr:
		require.Error(t, err)
		require.True(t, rpcerrors.IsConnectionClosed(err))
	case <-time.After(time.Second):
		t.Fatal("call did not resolve after disconnect")
	}
}
