package rpc

// Option configures a Connection at construction time (spec §4.8, §9 open
// questions on middleware/buffering knobs).
type Option func(*Connection)

// WithMiddleware appends mw, in declared order, to the chain every inbound
// dispatch is run through before reaching its handler.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Connection) { c.mw = append(c.mw, mw...) }
}

// WithSkipResultRevalidation disables Peer.Call's default re-validation of a
// unary result against the route's outValidator before it's unmarshalled
// into the caller's out pointer. Revalidation is on by default (spec §4.6
// step 5's "recommended" re-check); this is an escape hatch for routes whose
// outValidator is expensive and already trusted, once route-shape trust is
// established.
func WithSkipResultRevalidation() Option {
	return func(c *Connection) { c.revalidateResults = false }
}

// WithInboundChunkBuffer bounds an InboundStream's FIFO to maxLen chunks. A
// maxLen of 0 (the default) leaves it unbounded. dropOnFull selects which of
// the two backpressure modes of spec §4.4 applies once the bound is hit:
// true converts the overflowing chunk into a terminal BackpressureDropped
// error, false blocks the connection's single receive loop until the
// consumer catches up.
func WithInboundChunkBuffer(maxLen int, dropOnFull bool) Option {
	return func(c *Connection) {
		c.maxInboundChunkBuffer = maxLen
		c.dropOnBackpressure = dropOnFull
	}
}

// WithOnOpen registers a callback run once Serve's receive loop is live.
func WithOnOpen(fn func(*Connection)) Option {
	return func(c *Connection) { c.onOpen = fn }
}

// WithOnClose registers a callback run once teardown has fully completed;
// cause is the error that triggered teardown, or nil for an explicit Close.
func WithOnClose(fn func(*Connection, error)) Option {
	return func(c *Connection) { c.onClose = fn }
}
