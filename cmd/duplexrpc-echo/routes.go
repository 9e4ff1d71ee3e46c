package main

import (
	"fmt"

	"github.com/qpwo/duplexrpc/frame"
	"github.com/qpwo/duplexrpc/route"
	"github.com/qpwo/duplexrpc/validate"
)

// squareArgSchema pins "square"'s input to a single non-negative number,
// exercised through the current-draft JSON Schema validator.
const squareArgSchema = `{
	"type": "number",
	"minimum": 0
}`

// catalog is the one route.Catalog shared by every duplexrpc-echo server
// and client: it must be identical on both ends of the connection, since
// Peer.Call/Stream look a route up by (side, kind, name) against exactly
// this table.
func catalog() *route.Catalog {
	square, err := validate.JSONSchema([]byte(squareArgSchema))
	if err != nil {
		panic(fmt.Sprintf("duplexrpc-echo: compiling square schema: %v", err))
	}

	return route.Build([]route.Route{
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "echo", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "square", In: square, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "explode", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideServer, Kind: frame.KindStreamer, Name: "countUp", In: validate.Identity, Out: validate.Identity},
		{Side: frame.SideClient, Kind: frame.KindProc, Name: "approve", In: validate.Identity, Out: validate.Identity},
	})
}
