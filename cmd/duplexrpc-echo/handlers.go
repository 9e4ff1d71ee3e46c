package main

import (
	"encoding/json"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/qpwo/duplexrpc/rpc"
)

// serverHandlers implements the server side of the demo catalog: an echo
// proc, a typed square proc, an explode proc that always errors (exercises
// spec §8 scenario 4's explicit error surface), and a countUp streamer that
// calls back into the client between chunks (exercises §8's bidirectional
// scenario).
func serverHandlers() *rpc.Handlers {
	return rpc.NewHandlers().
		Proc("echo", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
			var text string
			if err := json.Unmarshal(args, &text); err != nil {
				return nil, err
			}
			log.WithField("text", text).Debug("echo")
			return json.Marshal(text)
		}).
		Proc("square", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
			var n float64
			if err := json.Unmarshal(args, &n); err != nil {
				return nil, err
			}
			return json.Marshal(n * n)
		}).
		Proc("explode", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("boom")
		}).
		Stream("countUp", func(ctx *rpc.Context, args json.RawMessage, yield func(json.RawMessage) error) error {
			var n int
			if err := json.Unmarshal(args, &n); err != nil {
				return err
			}
			for i := 1; i <= n; i++ {
				var approved bool
				if err := ctx.Conn.Peer().Call(ctx, "approve", i, &approved); err != nil {
					return err
				}
				if !approved {
					return errors.New("client rejected chunk")
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
}

// clientHandlers implements the client side of the demo catalog: just the
// "approve" callback the server's countUp streamer invokes mid-stream.
func clientHandlers() *rpc.Handlers {
	return rpc.NewHandlers().
		Proc("approve", func(ctx *rpc.Context, args json.RawMessage) (json.RawMessage, error) {
			var n int
			if err := json.Unmarshal(args, &n); err != nil {
				return nil, err
			}
			log.WithField("n", n).Info("approving chunk")
			return json.Marshal(true)
		})
}
