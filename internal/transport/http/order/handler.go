package order

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/bloom/internal/dto"
	"github.com/Additional-Code/bloom/internal/entity"
	"github.com/Additional-Code/bloom/internal/presentation/http/response"
	"github.com/Additional-Code/bloom/internal/service/lifecycle"
	service "github.com/Additional-Code/bloom/internal/service/order"
	"github.com/Additional-Code/bloom/internal/service/query"
	"github.com/Additional-Code/bloom/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/bloom/transport/http/order")

const defaultRecentSeconds = 5

// Handler exposes order endpoints over HTTP.
type Handler struct {
	orders    *service.Service
	lifecycle *lifecycle.Service
	queries   *query.Service
}

// NewHandler constructs an order Handler.
func NewHandler(orders *service.Service, lc *lifecycle.Service, queries *query.Service) *Handler {
	return &Handler{orders: orders, lifecycle: lc, queries: queries}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.POST("/clear", h.clear)
	g.GET("/analytics", h.analytics)
	g.GET("/recent", h.recent)
	g.GET("/:id", h.getByID)
	g.PATCH("/:id", h.updateStatus)
	g.PATCH("/:id/status", h.updateStatus)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	var filter query.Filter
	if raw := c.QueryParam("status"); raw != "" {
		status, err := entity.ParseStatus(raw)
		if err != nil {
			return b.WithError(errorbank.BadRequest(err.Error())).Build()
		}
		filter.Status = status
	}
	if raw := c.QueryParam("date"); raw != "" {
		day, err := query.ParseDay(raw, h.queries.Location())
		if err != nil {
			return b.WithError(errorbank.BadRequest("date must be YYYY-MM-DD", errorbank.WithCause(err))).Build()
		}
		filter.Day = &day
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.queries.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderListResponse{Orders: dto.FromOrders(orders)}).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("order.type", payload.OrderType),
	))
	defer span.End()

	order, err := h.orders.Create(ctx, payload.Input())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.orders.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := parseID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	// only status may be patched; anything else in the body is rejected
	var payload dto.UpdateStatusRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return b.WithError(errorbank.BadRequest("status is required")).Build()
		}
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.Status == "" {
		return b.WithError(errorbank.BadRequest("status is required")).Build()
	}
	status, err := entity.ParseStatus(payload.Status)
	if err != nil {
		return b.WithError(errorbank.BadRequest(err.Error())).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(status)),
	))
	defer span.End()

	order, err := h.lifecycle.Transition(ctx, id, status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) clear(c echo.Context) error {
	b := response.New(c)

	var payload dto.ClearRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.clear")
	defer span.End()

	res, err := h.orders.ClearAll(ctx, payload.Password)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.ClearResponse{Success: true, Message: service.ClearMessage, Cleared: res.Cleared}).Build()
}

func (h *Handler) analytics(c echo.Context) error {
	b := response.New(c)

	top, err := intParam(c, "top", 0)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.analytics")
	defer span.End()

	summary, err := h.queries.Analytics(ctx, top)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromSummary(summary)).Build()
}

func (h *Handler) recent(c echo.Context) error {
	b := response.New(c)

	seconds, err := intParam(c, "seconds", defaultRecentSeconds)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.recent")
	defer span.End()

	orders, err := h.queries.Recent(ctx, time.Duration(seconds)*time.Second)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderListResponse{Orders: dto.FromOrders(orders)}).Build()
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithCause(err))
	}
	return id, nil
}

func intParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errorbank.BadRequest(name + " must be a non-negative integer")
	}
	return v, nil
}
