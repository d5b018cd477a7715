package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/upfit/internal/dto"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	"github.com/Additional-Code/upfit/internal/presentation/http/response"
	service "github.com/Additional-Code/upfit/internal/service/order"
	orderstore "github.com/Additional-Code/upfit/internal/store/order"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/upfit/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("", h.deleteMany)
	g.GET("/statuses", h.statuses)
	g.GET("/:id", h.getByID)
	g.DELETE("/:id", h.deleteOne)
	g.POST("/:id/transition", h.transition)
	g.POST("/:id/cancel", h.cancel)
	g.PATCH("/:id/etas", h.updateETAs)
	g.PUT("/:id/inventory-status", h.setInventoryStatus)
	g.PUT("/:id/website-status", h.setWebsiteStatus)
	g.POST("/:id/publish", h.publishListing)
	g.GET("/:id/notes", h.listNotes)
	g.POST("/:id/notes", h.addNote)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	filter, err := parseListFilter(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, err := h.svc.ListOrders(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toDTO(o))
	}
	return b.WithData(out).WithMeta("count", len(out)).Build()
}

func (h *Handler) statuses(c echo.Context) error {
	flow := append(lifecycle.Flow(), lifecycle.Canceled)
	out := make([]dto.StatusOption, 0, len(flow))
	for _, s := range flow {
		out = append(out, dto.StatusOption{Code: string(s), Label: s.Label()})
	}
	return response.New(c).WithData(out).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	id := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.key", id)))
	defer span.End()

	detail, err := h.svc.GetOrder(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDetailDTO(detail)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(attribute.String("order.dealer_code", payload.DealerCode))
	defer span.End()

	order, err := h.svc.CreateOrder(ctx, orderstore.CreateInput{
		DealerCode:  payload.DealerCode,
		UpfitterID:  payload.UpfitterID,
		Build:       payload.Build,
		Pricing:     payload.Pricing,
		IsStock:     payload.IsStock,
		BuyerName:   payload.BuyerName,
		OEMEta:      payload.OEMEta,
		UpfitterEta: payload.UpfitterEta,
		DeliveryEta: payload.DeliveryEta,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.Created(dto.CreateOrderResponse{ID: order.ID, StockNumber: order.StockNumber}).Build()
}

func (h *Handler) transition(c echo.Context) error {
	b := response.New(c)

	var payload dto.TransitionRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.transition", trace.WithAttributes(
		attribute.String("order.id", c.Param("id")),
		attribute.String("order.to", payload.Status),
	))
	defer span.End()

	res, err := h.svc.TransitionOrder(ctx, c.Param("id"), payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toTransitionDTO(res)).Build()
}

func (h *Handler) cancel(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.cancel", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	res, err := h.svc.CancelOrder(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toTransitionDTO(res)).Build()
}

func (h *Handler) updateETAs(c echo.Context) error {
	b := response.New(c)

	var payload dto.UpdateETAsRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateETAs", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	order, err := h.svc.UpdateETAs(ctx, c.Param("id"), lifecycle.ETAs{
		OEM:      payload.OEMEta,
		Upfitter: payload.UpfitterEta,
		Delivery: payload.DeliveryEta,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderEnvelope{Order: toDTO(order)}).Build()
}

func (h *Handler) setInventoryStatus(c echo.Context) error {
	b := response.New(c)

	var payload dto.InventoryStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setInventoryStatus", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	order, err := h.svc.SetInventoryStatus(ctx, c.Param("id"), payload.Status, payload.BuyerName)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.InventoryStatusResponse{
		InventoryStatus: order.InventoryStatus,
		IsStock:         order.IsStock,
		BuyerName:       order.BuyerName,
	}).Build()
}

func (h *Handler) setWebsiteStatus(c echo.Context) error {
	b := response.New(c)

	var payload dto.WebsiteStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.setWebsiteStatus", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	order, err := h.svc.SetDealerWebsiteStatus(ctx, c.Param("id"), payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderEnvelope{Order: toDTO(order)}).Build()
}

func (h *Handler) publishListing(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.publishListing", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	order, channel, err := h.svc.PublishListing(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.PublishListingResponse{Order: toDTO(order), Channel: channel}).Build()
}

func (h *Handler) listNotes(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listNotes", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	notes, err := h.svc.ListNotes(ctx, c.Param("id"))
	if err != nil {
		return b.WithError(err).Build()
	}
	out := make([]dto.NoteResponse, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteDTO(n))
	}
	return b.WithData(out).Build()
}

func (h *Handler) addNote(c echo.Context) error {
	b := response.New(c)

	var payload dto.NoteRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.addNote", trace.WithAttributes(attribute.String("order.id", c.Param("id"))))
	defer span.End()

	note, err := h.svc.AddNote(ctx, c.Param("id"), payload.Text, payload.User)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.Created(dto.NoteEnvelope{Note: toNoteDTO(note)}).Build()
}

func (h *Handler) deleteMany(c echo.Context) error {
	b := response.New(c)

	var payload dto.DeleteOrdersRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.InvalidArgument("invalid payload", errorbank.WithCause(err))).Build()
	}
	return h.delete(c, b, payload.IDs)
}

func (h *Handler) deleteOne(c echo.Context) error {
	return h.delete(c, response.New(c), []string{c.Param("id")})
}

func (h *Handler) delete(c echo.Context, b *response.Builder, ids []string) error {
	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int("order.count", len(ids))))
	defer span.End()

	deleted, err := h.svc.DeleteOrders(ctx, ids)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.DeleteOrdersResponse{DeletedCount: deleted}).Build()
}

func parseListFilter(c echo.Context) (service.ListFilter, error) {
	f := service.ListFilter{
		Status:     c.QueryParam("status"),
		DealerCode: c.QueryParam("dealerCode"),
		UpfitterID: c.QueryParam("upfitterId"),
		Query:      c.QueryParam("q"),
	}
	if raw := strings.TrimSpace(c.QueryParam("isStock")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errorbank.InvalidArgument("isStock must be a boolean", errorbank.WithCause(err))
		}
		f.IsStock = &v
	}
	var err error
	if f.From, err = parseDate(c.QueryParam("from"), "from", false); err != nil {
		return f, err
	}
	if f.To, err = parseDate(c.QueryParam("to"), "to", true); err != nil {
		return f, err
	}
	return f, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates. A plain upper bound
// covers the whole day.
func parseDate(raw, name string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, errorbank.InvalidArgument(name+" must be a date", errorbank.WithDetail(name, raw))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
