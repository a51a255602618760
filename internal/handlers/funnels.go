package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/checkout"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/httpx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/validation"
)

const (
	defaultIdempotencyHeader = "Idempotency-Key"
	defaultEventBuffer       = 16
	minEventBuffer           = 8
	defaultKeepAlive         = 25 * time.Second
)

// OrderSubmitter places confirmed orders.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, req checkout.OrderRequest) (checkout.OrderResponse, error)
}

// FunnelOptions tunes the funnel handlers.
type FunnelOptions struct {
	// RequestTimeout bounds every route except the event stream.
	RequestTimeout    time.Duration
	IdempotencyHeader string
	EventBuffer       int
	KeepAlive         time.Duration
	Meter             metric.Meter
	Logger            *zap.Logger
}

// FunnelHandlers drives one visitor's funnel through its subjects.
type FunnelHandlers struct {
	registry  *session.Registry
	validator *validation.Validator
	bundle    *i18n.Bundle
	orders    OrderSubmitter

	timeout    time.Duration
	idemHeader string
	buffer     int
	keepAlive  time.Duration
	dropped    metric.Int64Counter
}

// NewFunnelHandlers constructs the /funnels handlers.
func NewFunnelHandlers(registry *session.Registry, v *validation.Validator, bundle *i18n.Bundle, orders OrderSubmitter, opts FunnelOptions) *FunnelHandlers {
	if strings.TrimSpace(opts.IdempotencyHeader) == "" {
		opts.IdempotencyHeader = defaultIdempotencyHeader
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.EventBuffer < minEventBuffer {
		opts.EventBuffer = minEventBuffer
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	if v == nil {
		v = validation.New(bundle)
	}
	if opts.Meter == nil {
		opts.Meter = otel.GetMeterProvider().Meter("funnel/handlers")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	dropped, err := opts.Meter.Int64Counter(
		"funnel.events.dropped",
		metric.WithDescription("Count of server-sent events dropped because a client fell behind"),
	)
	if err != nil {
		opts.Logger.Warn("unable to register dropped events metric", zap.Error(err))
	}
	return &FunnelHandlers{
		registry:   registry,
		validator:  v,
		bundle:     bundle,
		orders:     orders,
		timeout:    opts.RequestTimeout,
		idemHeader: opts.IdempotencyHeader,
		buffer:     opts.EventBuffer,
		keepAlive:  opts.KeepAlive,
		dropped:    dropped,
	}
}

// Routes wires the /funnels/{funnelID} endpoints onto the provided router.
func (h *FunnelHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Route("/{funnelID}", func(fr chi.Router) {
		fr.Use(h.requireOwnership)
		fr.Get("/events", h.streamEvents)
		fr.Group(func(g chi.Router) {
			if h.timeout > 0 {
				g.Use(middleware.Timeout(h.timeout))
			}
			g.Get("/", h.getFunnel)
			g.Post("/options/first", h.updateFirstOption)
			g.Post("/options/second", h.updateSecondOption)
			g.Post("/options/clear", h.clearOptions)
			g.Post("/quantity", h.updateQuantity)
			g.Post("/bundle", h.selectBundle)
			g.Patch("/panels/{index}", h.updatePanel)
			g.Put("/delivery", h.setDelivery)
			g.Put("/payment", h.setPayment)
			g.Patch("/fields/{fieldID}", h.updateField)
			g.Post("/confirm", h.confirm)
			g.Post("/orders", h.placeOrder)
		})
	})
}

// requireOwnership hides funnels the caller's session does not hold.
func (h *FunnelHandlers) requireOwnership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil || !sess.Owns(funnelID(r)) {
			httpx.WriteError(r.Context(), w, httpx.NewError("funnel_not_found", "funnel not found or expired", http.StatusNotFound))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func funnelID(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "funnelID"))
}

// mutate applies fn under the funnel lock and responds with the resulting
// snapshot.
func (h *FunnelHandlers) mutate(w http.ResponseWriter, r *http.Request, fn func(f *funnel.Funnel) error) {
	ctx := r.Context()
	id := funnelID(r)
	lang := requestctx.Locale(ctx)

	var snap funnel.Snapshot
	err := h.registry.With(id, func(f *funnel.Funnel) error {
		if fn != nil {
			if err := fn(f); err != nil {
				return err
			}
		}
		snap = f.Snapshot()
		return nil
	})
	if err != nil {
		writeFunnelError(ctx, w, h.bundle, lang, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildFunnelPayload(id, lang, snap))
}

func (h *FunnelHandlers) getFunnel(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, nil)
}

type valueRequest struct {
	Value string `json:"value"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

type bundleRequest struct {
	OfferID string `json:"offerId"`
}

type choiceRequest struct {
	ID string `json:"id"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.WriteError(r.Context(), w, httpx.BodyError(err))
		return false
	}
	return true
}

func (h *FunnelHandlers) updateFirstOption(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Options.UpdateFirstOption(req.Value)
	})
}

func (h *FunnelHandlers) updateSecondOption(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Options.UpdateSecondOption(req.Value)
	})
}

func (h *FunnelHandlers) clearOptions(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(f *funnel.Funnel) error {
		f.Options.ClearOptions()
		return nil
	})
}

func (h *FunnelHandlers) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		f.Options.UpdateQuantity(*req.Quantity)
		return nil
	})
}

// selectBundle chooses an offer; an empty offer id returns to a single item.
func (h *FunnelHandlers) selectBundle(w http.ResponseWriter, r *http.Request) {
	var req bundleRequest
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		if strings.TrimSpace(req.OfferID) == "" {
			f.Bundle.ClearOffer()
			return nil
		}
		return f.Bundle.SelectOffer(req.OfferID)
	})
}

func (h *FunnelHandlers) updatePanel(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "panel index must be an integer", http.StatusBadRequest))
		return
	}
	var req funnel.PanelUpdate
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Panels.UpdatePanelOption(index, req)
	})
}

func (h *FunnelHandlers) setDelivery(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Delivery.SetDeliveryOption(req.ID)
	})
}

func (h *FunnelHandlers) setPayment(w http.ResponseWriter, r *http.Request) {
	var req choiceRequest
	if !decode(w, r, &req) {
		return
	}
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Payment.SetPaymentOption(req.ID)
	})
}

// updateField validates the submitted value and stores the outcome.
func (h *FunnelHandlers) updateField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fieldID := strings.TrimSpace(chi.URLParam(r, "fieldID"))
	key, ok := funnel.ResolveField(fieldID)
	if !ok {
		writeFunnelError(ctx, w, h.bundle, requestctx.Locale(ctx), funnel.ErrUnknownField)
		return
	}
	var req valueRequest
	if !decode(w, r, &req) {
		return
	}
	result := h.validator.Check(key, req.Value, requestctx.Locale(ctx))
	h.mutate(w, r, func(f *funnel.Funnel) error {
		return f.Form.UpdateField(fieldID, result.Update())
	})
}

// confirmed runs Confirm under the funnel lock. On failure it has already
// written the error response.
func (h *FunnelHandlers) confirmed(w http.ResponseWriter, r *http.Request) (funnel.Confirmation, bool) {
	ctx := r.Context()
	lang := requestctx.Locale(ctx)

	var (
		conf    funnel.Confirmation
		invalid []funnel.FieldKey
	)
	err := h.registry.With(funnelID(r), func(f *funnel.Funnel) error {
		var err error
		conf, err = f.Confirm()
		if errors.Is(err, funnel.ErrFormInvalid) {
			invalid = f.Form.InvalidFields()
		}
		return err
	})
	switch {
	case err == nil:
		return conf, true
	case isConfirmError(err):
		writeConfirmError(ctx, w, h.bundle, lang, err, invalid)
	default:
		writeFunnelError(ctx, w, h.bundle, lang, err)
	}
	return funnel.Confirmation{}, false
}

func (h *FunnelHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	conf, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, confirmationPayload{
		ID:           funnelID(r),
		Confirmation: conf,
		Display:      buildTotals(conf.Quote, requestctx.Locale(r.Context())),
	})
}

type orderPayload struct {
	FunnelID string                 `json:"funnelId"`
	Order    checkout.OrderResponse `json:"order"`
	Message  string                 `json:"message"`
	Display  totalsPayload          `json:"display"`
}

// placeOrder confirms the funnel, submits it and retires the funnel on
// success. Only one submission per funnel runs at a time; a failed one
// leaves the funnel in place for a retry.
func (h *FunnelHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "order submission is unavailable", http.StatusServiceUnavailable))
		return
	}
	id := funnelID(r)
	lang := requestctx.Locale(ctx)
	release, err := h.registry.Claim(id)
	if err != nil {
		writeFunnelError(ctx, w, h.bundle, lang, err)
		return
	}
	defer release()

	conf, ok := h.confirmed(w, r)
	if !ok {
		return
	}
	sess := sessionFromContext(ctx)
	logger := requestctx.Logger(ctx)

	var sessionID string
	if sess != nil {
		sessionID = sess.ID()
	}
	resp, err := h.orders.SubmitOrder(ctx, checkout.OrderRequest{
		FunnelID:       id,
		SessionID:      sessionID,
		Locale:         lang,
		IdempotencyKey: r.Header.Get(h.idemHeader),
		Confirmation:   conf,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrOrderRejected):
			httpx.WriteError(ctx, w, httpx.NewError("order_rejected", "order was rejected", http.StatusUnprocessableEntity))
		default:
			logger.Error("order submission failed", zap.String("funnel_id", id), zap.Error(err))
			httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "order could not be placed; retry shortly", http.StatusBadGateway))
		}
		return
	}

	if product, found := h.registry.Product(id); found && sess != nil {
		sess.ForgetFunnel(product)
	}
	h.registry.Remove(id)
	logger.Info("order placed", zap.String("funnel_id", id), zap.String("order_id", resp.OrderID), zap.Int64("total", conf.Quote.Total))

	message := resp.OrderID
	if h.bundle != nil {
		message = h.bundle.Tf(lang, "order.accepted", resp.OrderID)
	}
	httpx.WriteJSON(w, http.StatusCreated, orderPayload{
		FunnelID: id,
		Order:    resp,
		Message:  message,
		Display:  buildTotals(conf.Quote, lang),
	})
}
