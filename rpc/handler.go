package rpc

import "encoding/json"

// ProcHandler implements one unary procedure. args has already passed the
// route's inValidator; the returned value is passed through outValidator
// before being framed back to the caller (spec §4.5 steps 3-4).
type ProcHandler func(ctx *Context, args json.RawMessage) (json.RawMessage, error)

// StreamHandler implements one streamer. It calls yield once per chunk it
// produces; yield validates the chunk with outValidator and frames it to
// the caller, returning an error if validation failed, the send failed, or
// the stream was cancelled — in any of those cases the handler must return
// promptly (its "cancellation path", spec §4.5 step 5 / §9). A nil return
// from StreamHandler sends stream-end; a non-nil return (other than one
// already reported by yield) sends stream-error.
type StreamHandler func(ctx *Context, args json.RawMessage, yield func(chunk json.RawMessage) error) error

// Handlers is the set of local-side implementations a Connection dispatches
// inbound calls to (spec §4.5, C5). Proc and Stream populate these from
// application code; names not present in the route.Catalog for this side
// are never reachable regardless of what's registered here.
type Handlers struct {
	Procs     map[string]ProcHandler
	Streamers map[string]StreamHandler
}

// NewHandlers returns an empty Handlers ready for Proc/Stream registration.
func NewHandlers() *Handlers {
	return &Handlers{Procs: map[string]ProcHandler{}, Streamers: map[string]StreamHandler{}}
}

// Proc registers a unary procedure handler by name.
func (h *Handlers) Proc(name string, fn ProcHandler) *Handlers {
	h.Procs[name] = fn
	return h
}

// Stream registers a streamer handler by name.
func (h *Handlers) Stream(name string, fn StreamHandler) *Handlers {
	h.Streamers[name] = fn
	return h
}
