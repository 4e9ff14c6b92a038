package controllers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/api/response"
	"wishdoc/internal/services/document"
	"wishdoc/internal/services/user"
)

// requestContext returns the context for downstream calls. fasthttp
// does not carry a standard context, so the middleware stores the
// extracted trace context on the request and handlers pick it up here;
// spans and slog output started from it inherit the incoming trace.
func requestContext(ctx *fasthttp.RequestCtx) context.Context {
	if traceCtx, ok := ctx.UserValue("traceCtx").(context.Context); ok {
		return traceCtx
	}
	return context.Background()
}

// actor returns the identity the auth middleware resolved for this
// request. The zero value means the route was public and no credential
// was presented.
func actor(ctx *fasthttp.RequestCtx) user.Resolved {
	if resolved, ok := ctx.UserValue("actor").(user.Resolved); ok {
		return resolved
	}
	return user.Resolved{}
}

func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(body, target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	response.NewResponse[any](stdCtx, message, nil).WithError(err).Write(ctx)
}

func writeOK[T any](ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, result T) {
	response.NewResponse(stdCtx, message, result).Write(ctx)
}

func pathParam(ctx *fasthttp.RequestCtx, key string) (string, error) {
	val := ctx.UserValue(key)
	if val == nil {
		return "", fmt.Errorf("%s is required", key)
	}
	return fmt.Sprint(val), nil
}

func queryInt(ctx *fasthttp.RequestCtx, key string) int {
	raw := string(ctx.QueryArgs().Peek(key))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}

func requireStringQuery(ctx *fasthttp.RequestCtx, key string) (string, error) {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return "", fmt.Errorf("parameter: %s is required", key)
	}
	return string(raw), nil
}

// formUpload extracts the multipart attachment, if any, from a
// document form post.
func formUpload(ctx *fasthttp.RequestCtx) (*document.Upload, error) {
	header, err := ctx.FormFile("file")
	if err != nil {
		// no file part in the form
		return nil, nil
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &document.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
