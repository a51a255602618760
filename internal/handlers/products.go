package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/catalog"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/httpx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/theme"
)

// ProductHandlers serves the catalog and starts funnels.
type ProductHandlers struct {
	catalog  *catalog.Catalog
	registry *session.Registry
	now      func() time.Time
}

// NewProductHandlers constructs catalog handlers backed by the registry.
func NewProductHandlers(cat *catalog.Catalog, registry *session.Registry) *ProductHandlers {
	return &ProductHandlers{catalog: cat, registry: registry, now: time.Now}
}

// Routes wires the /products endpoints onto the provided router.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listProducts)
	r.Get("/{slug}", h.getProduct)
	r.Post("/{slug}/funnel", h.startFunnel)
}

func listThemes(w http.ResponseWriter, _ *http.Request) {
	all := theme.All()
	out := make([]themePayload, 0, len(all))
	for _, t := range all {
		out = append(out, buildThemePayload(t))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"themes": out, "default": theme.Default})
}

func (h *ProductHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	lang := requestctx.Locale(r.Context())
	products := h.catalog.All()
	out := make([]productSummary, 0, len(products))
	for _, p := range products {
		out = append(out, buildProductSummary(p, lang))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"products": out})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, ok := h.lookup(w, r)
	if !ok {
		return
	}
	lang := requestctx.Locale(ctx)
	if lang == "" {
		lang = product.Locale
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"product": buildProductPayload(product, lang, h.now())})
}

// startFunnel returns the visitor's live funnel for the product or creates a
// fresh one and records it in the session.
func (h *ProductHandlers) startFunnel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	product, ok := h.lookup(w, r)
	if !ok {
		return
	}
	sess := sessionFromContext(ctx)
	if sess == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "session is unavailable", http.StatusInternalServerError))
		return
	}
	lang := requestctx.Locale(ctx)
	if lang == "" {
		lang = product.Locale
	}
	logger := requestctx.Logger(ctx)

	if id, held := sess.FunnelFor(product.Slug); held {
		var snap funnel.Snapshot
		err := h.registry.With(id, func(f *funnel.Funnel) error {
			snap = f.Snapshot()
			return nil
		})
		if err == nil {
			httpx.WriteJSON(w, http.StatusOK, buildFunnelPayload(id, lang, snap))
			return
		}
		sess.ForgetFunnel(product.Slug)
	}

	id, err := h.registry.Create(product.Slug, product.FunnelConfig(logger))
	if err != nil {
		if errors.Is(err, session.ErrRegistryFull) {
			httpx.WriteError(ctx, w, httpx.NewError("funnel_capacity", "too many active checkouts; retry shortly", http.StatusServiceUnavailable))
			return
		}
		logger.Error("funnel create failed", zap.String("product", product.Slug), zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("funnel_error", "failed to start checkout", http.StatusInternalServerError))
		return
	}
	sess.SetFunnel(product.Slug, id)

	var snap funnel.Snapshot
	if err := h.registry.With(id, func(f *funnel.Funnel) error {
		snap = f.Snapshot()
		return nil
	}); err != nil {
		writeFunnelError(ctx, w, nil, lang, err)
		return
	}
	w.Header().Set("Location", "/funnels/"+id)
	httpx.WriteJSON(w, http.StatusCreated, buildFunnelPayload(id, lang, snap))
}

func (h *ProductHandlers) lookup(w http.ResponseWriter, r *http.Request) (catalog.Product, bool) {
	ctx := r.Context()
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	product, err := h.catalog.Get(slug)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
			return catalog.Product{}, false
		}
		httpx.WriteError(ctx, w, httpx.NewError("catalog_error", "failed to load product", http.StatusInternalServerError))
		return catalog.Product{}, false
	}
	return product, true
}
