package rpcerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemotePreservesExactMessage(t *testing.T) {
	var err = Remote("boom")
	assert.Equal(t, "boom", err.Error())
	assert.True(t, IsRemote(err))
	assert.False(t, IsHandler(err))
}

func TestHandlerClassification(t *testing.T) {
	var err = Handler("boom")
	assert.Equal(t, "boom", err.Error())
	assert.True(t, IsHandler(err))
	assert.False(t, IsRemote(err))
}

func TestValidationClassification(t *testing.T) {
	var err = Validation("expected number, got string")
	assert.True(t, IsValidation(err))
}

func TestNoSuchRouteClassification(t *testing.T) {
	var err = NoSuchRoute("server.procs.missing")
	assert.True(t, IsNoSuchRoute(err))
	assert.Contains(t, err.Error(), "server.procs.missing")
}
