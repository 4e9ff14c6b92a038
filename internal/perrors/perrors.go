package perrors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

type ErrCode struct {
	Code   string `json:"code"`
	Status int    `json:"status"`
}

var (
	ErrCodeInvalidRequest     ErrCode = ErrCode{"invalid_request", http.StatusBadRequest}
	ErrCodeInternalServer             = ErrCode{"internal_server_error", http.StatusInternalServerError}
	ErrCodeNotFound                   = ErrCode{"not_found", http.StatusNotFound}
	ErrCodeConflict                   = ErrCode{"conflict", http.StatusConflict}
	ErrCodePermissionDenied           = ErrCode{"permission_denied", http.StatusForbidden}
	ErrCodeMalformedDocument          = ErrCode{"malformed_document", http.StatusBadRequest}
	ErrCodeInvalidCredential          = ErrCode{"invalid_credential", http.StatusUnauthorized}
	ErrCodePersistence                = ErrCode{"persistence_error", http.StatusInternalServerError}
)

type Err struct {
	Message    string                   `json:"-"`
	Err        string                   `json:"error"`
	Code       ErrCode                  `json:"-"`
	Stacktrace []string                 `json:"-"`
	Args       []map[string]interface{} `json:"args"`
}

func (e Err) Error() string {
	return e.Err
}

func (e Err) HttpStatus() int {
	return e.Code.Status
}

func (e Err) Print(ctx context.Context) {
	args := append([]any{}, slog.Any("error", e.Error()))
	if len(e.Args) > 0 {
		for k, v := range e.Args[0] {
			args = append(args, slog.Any(k, v))
		}
	}
	args = append(args, slog.Any("stacktrace", e.Stacktrace))
	slog.ErrorContext(ctx, e.Message, args...)
}

func New(code ErrCode, msg string, err error, args ...map[string]interface{}) error {
	pc := make([]uintptr, 20)
	count := runtime.Callers(1, pc)
	frames := runtime.CallersFrames(pc[:count])

	var stacktrace []string
	for frame, hasMore := frames.Next(); hasMore; frame, hasMore = frames.Next() {
		stacktrace = append(stacktrace, fmt.Sprintf("%s:%d", frame.File, frame.Line))
	}

	errString := msg
	if err != nil {
		errString = err.Error()
	}

	return Err{
		Code:       code,
		Message:    msg,
		Err:        errString,
		Stacktrace: stacktrace,
		Args:       args,
	}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrCode) bool {
	var perr Err
	if errors.As(err, &perr) {
		return perr.Code == code
	}
	return false
}

func NewErrInvalidRequest(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeInvalidRequest, msg, err, args...)
}

func NewErrInternalServerError(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeInternalServer, msg, err, args...)
}

func NewErrNotFound(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeNotFound, msg, err, args...)
}

func NewErrConflict(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeConflict, msg, err, args...)
}

func NewErrPermissionDenied(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodePermissionDenied, msg, err, args...)
}

func NewErrMalformedDocument(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeMalformedDocument, msg, err, args...)
}

func NewErrInvalidCredential(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodeInvalidCredential, msg, err, args...)
}

func NewErrPersistence(msg string, err error, args ...map[string]interface{}) error {
	return New(ErrCodePersistence, msg, err, args...)
}
