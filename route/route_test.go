package route

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qpwo/duplexrpc/frame"
)

func identity(v json.RawMessage) (json.RawMessage, error) { return v, nil }

func TestLookupHitAndMiss(t *testing.T) {
	var c = Build([]Route{
		{Side: frame.SideServer, Kind: frame.KindProc, Name: "uppercase", In: identity, Out: identity},
	})
	require.Equal(t, 1, c.Len())

	_, ok := c.Lookup(frame.SideServer, frame.KindProc, "uppercase")
	assert.True(t, ok)

	_, ok = c.Lookup(frame.SideClient, frame.KindProc, "uppercase")
	assert.False(t, ok, "side is part of the key")

	_, ok = c.Lookup(frame.SideServer, frame.KindStreamer, "uppercase")
	assert.False(t, ok, "kind is part of the key")
}

func TestNameMayRepeatAcrossSideOrKind(t *testing.T) {
	require.NotPanics(t, func() {
		Build([]Route{
			{Side: frame.SideServer, Kind: frame.KindProc, Name: "same", In: identity, Out: identity},
			{Side: frame.SideClient, Kind: frame.KindProc, Name: "same", In: identity, Out: identity},
			{Side: frame.SideServer, Kind: frame.KindStreamer, Name: "same", In: identity, Out: identity},
		})
	})
}

func TestDuplicateRoutePanics(t *testing.T) {
	assert.Panics(t, func() {
		Build([]Route{
			{Side: frame.SideServer, Kind: frame.KindProc, Name: "dup", In: identity, Out: identity},
			{Side: frame.SideServer, Kind: frame.KindProc, Name: "dup", In: identity, Out: identity},
		})
	})
}
