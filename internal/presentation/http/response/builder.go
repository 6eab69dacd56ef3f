package response

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/bloom/pkg/errorbank"
)

// Builder helps construct consistent HTTP responses. Successful responses
// carry the payload as the body; errors share one envelope.
type Builder struct {
	ctx    echo.Context
	status int
	data   any
	err    error
}

// ErrorBody is the JSON shape of every failed request.
type ErrorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// New instantiates a Builder for the provided request context.
func New(ctx echo.Context) *Builder {
	return &Builder{ctx: ctx, status: http.StatusOK}
}

// WithStatus overrides the response status code.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData attaches a success payload.
func (b *Builder) WithData(data any) *Builder {
	b.data = data
	return b
}

// WithError records an error to be rendered.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// Build finalises and emits the HTTP response.
func (b *Builder) Build() error {
	if b.err != nil {
		return b.buildError()
	}
	if b.data == nil {
		return b.ctx.NoContent(b.status)
	}
	return b.ctx.JSON(b.status, b.data)
}

func (b *Builder) buildError() error {
	appErr := errorbank.From(b.err)
	status := b.status
	if status < 400 {
		status = appErr.StatusCode()
	}
	if status >= http.StatusInternalServerError {
		b.ctx.Logger().Errorf("request failed: %v", b.err)
	}
	return b.ctx.JSON(status, ErrorBody{
		Error:   appErr.Message(),
		Kind:    string(appErr.Kind()),
		Details: appErr.Details(),
	})
}
