package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func requestFor(path string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI(path)
	return ctx
}

func TestIsPublicRoute(t *testing.T) {
	// Logout stays reachable without a verifiable token so a stale or
	// garbage session can always be cleared.
	public := []string{"/api/health", "/login", "/logout", "/adminuser", "/oauth", "/oauth/callback"}
	for _, path := range public {
		assert.True(t, isPublicRoute(requestFor(path)), path)
	}

	private := []string{"/docs", "/document", "/document/abc", "/user/alice", "/auth/me", "/reset", "/searchDocuments"}
	for _, path := range private {
		assert.False(t, isPublicRoute(requestFor(path)), path)
	}
}
