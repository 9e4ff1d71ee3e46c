package rpc

import "context"

// Context is the ambient, per-inbound-message bundle a handler receives
// explicitly as its first parameter — the "explicit context object...
// captured in closures for nested calls" strategy of spec §9, matching the
// teacher's ConsumerContext (consumer/context.go), which is threaded
// explicitly into application code rather than stashed goroutine-locally.
// Because it's passed explicitly as a parameter (not recovered from a
// goroutine-local), it trivially survives awaits/blocking calls within the
// handler: the same *Context is simply still in scope.
type Context struct {
	// Go context governing this dispatch: cancelled when the inbound
	// stream-cancel arrives (streamer handlers) or the Connection closes.
	context.Context

	// Conn is the connection this message arrived on. Handlers use
	// Conn.Peer() to call back into the other side (spec §4.8, §9).
	Conn *Connection

	// ReqID is the request id of the inbound call being dispatched.
	ReqID uint64

	// Fields holds application-supplied metadata, enriched by any
	// configured Middleware before the handler runs.
	Fields map[string]any
}

// WithField returns a shallow copy of ctx with key/value merged into Fields.
// Middleware uses this to enrich the context in onion-style fashion before
// calling next.
func (c *Context) WithField(key string, value any) *Context {
	var next = *c
	next.Fields = make(map[string]any, len(c.Fields)+1)
	for k, v := range c.Fields {
		next.Fields[k] = v
	}
	next.Fields[key] = value
	return &next
}

// Middleware enriches or observes a Context before the handler runs, in
// classic onion-style (ctx, next) => next(ctx) order (spec §4.8).
type Middleware func(ctx *Context, next func(*Context) error) error

// chain composes middleware (in declared order, outermost first) around a
// terminal call that invokes the handler.
func chain(mw []Middleware, final func(*Context) error) func(*Context) error {
	var next = final
	for i := len(mw) - 1; i >= 0; i-- {
		var m = mw[i]
		var inner = next
		next = func(ctx *Context) error { return m(ctx, inner) }
	}
	return next
}
