package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	json "github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"wishdoc/internal/perrors"
)

// Response is the JSON envelope every endpoint writes: a status flag,
// an optional message and the payload. Error kinds map to transport
// status codes here and nowhere deeper in the stack.
type Response[T any] struct {
	ctx        context.Context
	httpStatus int

	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Result  T      `json:"result,omitempty"`
}

func NewResponse[T any](ctx context.Context, msg string, result T) *Response[T] {
	return &Response[T]{
		ctx:        ctx,
		httpStatus: http.StatusOK,
		Status:     true,
		Message:    msg,
		Result:     result,
	}
}

// WithError marks the response failed and derives the HTTP status from
// the error kind. Unknown errors become internal server errors.
func (r *Response[T]) WithError(err error) *Response[T] {
	var perr perrors.Err
	if !errors.As(err, &perr) {
		perr = perrors.NewErrInternalServerError(r.Message, err).(perrors.Err)
	}

	perr.Print(r.ctx)
	r.httpStatus = perr.HttpStatus()
	r.Status = false
	if r.Message == "" {
		r.Message = perr.Error()
	}

	return r
}

// Write sets the content type and writes the envelope to the fasthttp
// context.
func (r *Response[T]) Write(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("content-type", "application/json; charset=utf-8")
	ctx.SetStatusCode(r.httpStatus)

	body, err := json.Marshal(r)
	if err != nil {
		slog.ErrorContext(r.ctx, "Unable to json encode response", slog.Any("error", err))
		ctx.SetStatusCode(http.StatusInternalServerError)
		return
	}

	ctx.SetBody(body)
}
