package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/inkblog/pagination"
)

// Envelope defines the uniform structure for API responses.
type Envelope struct {
	Success    bool             `json:"success"`
	Data       interface{}      `json:"data,omitempty"`
	Error      string           `json:"error,omitempty"`
	ErrorCode  string           `json:"errorCode,omitempty"`
	Message    string           `json:"message,omitempty"`
	Pagination *pagination.Meta `json:"pagination,omitempty"`
	Detail     string           `json:"detail,omitempty"`
	Timestamp  string           `json:"timestamp"`
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Respond writes env with the given status code, stamping the timestamp.
func Respond(ctx *gin.Context, status int, env Envelope) {
	env.Timestamp = now()
	ctx.JSON(status, env)
}

// Success returns a standard 200 response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, Envelope{Success: true, Data: data})
}

// SuccessMessage returns a 200 response with a human readable message.
func SuccessMessage(ctx *gin.Context, message string, data interface{}) {
	Respond(ctx, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Created returns a 201 response.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, Envelope{Success: true, Data: data})
}

// PagedEnvelope builds the list response for a page without writing it.
func PagedEnvelope[T any](page *pagination.Page[T]) Envelope {
	meta := page.Meta
	return Envelope{Success: true, Data: page.Items, Pagination: &meta, Timestamp: now()}
}

// Paged returns a 200 list response with its pagination block.
func Paged[T any](ctx *gin.Context, page *pagination.Page[T]) {
	ctx.JSON(http.StatusOK, PagedEnvelope(page))
}

// Error renders err as a failure envelope. Non-AppErrors are reported as internal errors;
// the cause is only exposed while gin runs in debug mode.
func Error(ctx *gin.Context, err error) {
	app := AsAppError(err)
	env := Envelope{
		Success:   false,
		Error:     app.Message,
		ErrorCode: app.Code,
	}
	if gin.IsDebugging() && app.Err != nil {
		env.Detail = app.Err.Error()
	}
	Respond(ctx, app.Kind.Status(), env)
}

// Abort renders err and stops the handler chain.
func Abort(ctx *gin.Context, err error) {
	Error(ctx, err)
	ctx.Abort()
}
