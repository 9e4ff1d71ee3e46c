package frame

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var f = NewRPC(SideServer, KindProc, 42, "uppercase", json.RawMessage(`"foo"`))

	b, err := Encode(f)
	require.NoError(t, err)

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestDecodeUnknownTypeIsNotFatal(t *testing.T) {
	_, err := Decode([]byte(`{"type":"future-frame","reqId":1}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownFrameType)
}

func TestDecodeIgnoresUnknownFields(t *testing.T) {
	f, err := Decode([]byte(`{"type":"stream-end","reqId":7,"mysteryField":123}`))
	require.NoError(t, err)
	assert.Equal(t, TypeStreamEnd, f.Type)
	assert.EqualValues(t, 7, f.ReqID)
}

func TestStreamAckFrame(t *testing.T) {
	var f = NewStreamAck(5)
	assert.Equal(t, TypeRPCResult, f.Type)
	assert.True(t, f.OK)
	assert.True(t, f.Streaming)
}
