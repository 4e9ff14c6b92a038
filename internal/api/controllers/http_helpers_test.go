package controllers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/services/user"
)

type ctxKey string

func TestRequestContextUsesStoredTraceContext(t *testing.T) {
	reqCtx := &fasthttp.RequestCtx{}
	traceCtx := context.WithValue(context.Background(), ctxKey("trace"), "abc123")
	reqCtx.SetUserValue("traceCtx", traceCtx)

	got := requestContext(reqCtx)
	assert.Equal(t, "abc123", got.Value(ctxKey("trace")))
}

func TestRequestContextWithoutTraceContext(t *testing.T) {
	reqCtx := &fasthttp.RequestCtx{}

	got := requestContext(reqCtx)
	assert.NotNil(t, got)
	assert.NoError(t, got.Err())
}

func TestActorDefaultsToZeroValue(t *testing.T) {
	reqCtx := &fasthttp.RequestCtx{}
	assert.Equal(t, user.Resolved{}, actor(reqCtx))

	reqCtx.SetUserValue("actor", user.Resolved{ID: "alice", Role: user.RoleMember})
	assert.Equal(t, "alice", actor(reqCtx).ID)
}
