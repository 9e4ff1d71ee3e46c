// Package route holds the shared route catalog: the immutable map from
// (side, kind, name) to a pair of validators that pins the input and output
// shapes of every endpoint a connection may dispatch or call.
package route

import (
	"encoding/json"
	"fmt"

	"github.com/qpwo/duplexrpc/frame"
)

// Validator is a pure function that accepts or rejects a candidate value,
// optionally coercing it. It receives and returns raw JSON so the Catalog
// doesn't need to know concrete Go types for routes it merely forwards.
type Validator func(json.RawMessage) (json.RawMessage, error)

// Route pins the shape of a single endpoint.
type Route struct {
	Side frame.Side
	Kind frame.Kind
	Name string
	In   Validator
	Out  Validator
}

type key struct {
	side frame.Side
	kind frame.Kind
	name string
}

// Catalog is the immutable, built-once route table shared by both peers.
type Catalog struct {
	routes map[key]Route
}

// Build constructs a Catalog from a slice of Routes. It panics if two routes
// share a (Side, Kind, Name) key, or if a route is registered with a nil In
// or Out validator — both are programming errors caught at process startup,
// not a runtime condition any caller can recover from. Dispatch and Peer.Call
// rely on this to invoke In/Out unconditionally, without a nil check on
// every call.
func Build(routes []Route) *Catalog {
	var c = &Catalog{routes: make(map[key]Route, len(routes))}
	for _, r := range routes {
		var k = key{r.Side, r.Kind, r.Name}
		if _, ok := c.routes[k]; ok {
			panic(fmt.Sprintf("route: duplicate route (%s, %s, %s)", r.Side, r.Kind, r.Name))
		}
		if r.In == nil || r.Out == nil {
			panic(fmt.Sprintf("route: route (%s, %s, %s) missing In or Out validator", r.Side, r.Kind, r.Name))
		}
		c.routes[k] = r
	}
	return c
}

// Lookup resolves a route by its full key. The bool return is false if no
// such route was registered; callers turn that into a NoSuchRoute error at
// the appropriate surface (outbound call or inbound dispatch).
func (c *Catalog) Lookup(side frame.Side, kind frame.Kind, name string) (Route, bool) {
	r, ok := c.routes[key{side, kind, name}]
	return r, ok
}

// Len returns the number of distinct routes in the catalog, chiefly useful
// in tests that assert a catalog was built from the expected route set.
func (c *Catalog) Len() int { return len(c.routes) }
