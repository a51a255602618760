package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/httpx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/platform/requestctx"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/session"
)

type confirmProblem struct {
	err     error
	code    string
	message string
}

// confirmProblems lists the readiness errors in display order.
var confirmProblems = []confirmProblem{
	{funnel.ErrSelectionIncomplete, "selection_incomplete", "funnel.selection_incomplete"},
	{funnel.ErrPanelsIncomplete, "panels_incomplete", "funnel.panels_incomplete"},
	{funnel.ErrDeliveryMissing, "delivery_missing", "funnel.delivery_missing"},
	{funnel.ErrPaymentMissing, "payment_missing", "funnel.payment_missing"},
	{funnel.ErrFormInvalid, "form_invalid", "funnel.form_invalid"},
}

type problemPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func isConfirmError(err error) bool {
	for _, p := range confirmProblems {
		if errors.Is(err, p.err) {
			return true
		}
	}
	return false
}

func buildProblems(bundle *i18n.Bundle, lang string, err error) []problemPayload {
	var out []problemPayload
	for _, p := range confirmProblems {
		if !errors.Is(err, p.err) {
			continue
		}
		msg := p.message
		if bundle != nil {
			msg = bundle.T(lang, p.message)
		}
		out = append(out, problemPayload{Code: p.code, Message: msg})
	}
	return out
}

// writeFunnelError maps funnel and registry errors onto the error envelope.
func writeFunnelError(ctx context.Context, w http.ResponseWriter, bundle *i18n.Bundle, lang string, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, session.ErrFunnelNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("funnel_not_found", "funnel not found or expired", http.StatusNotFound))
	case errors.Is(err, session.ErrOrderInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("order_in_progress", "an order for this checkout is already being placed", http.StatusConflict))
	case errors.Is(err, funnel.ErrUnknownOptionValue), errors.Is(err, funnel.ErrAxisUndefined):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_option", err.Error(), http.StatusBadRequest))
	case errors.Is(err, funnel.ErrOptionUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("option_unavailable", err.Error(), http.StatusConflict))
	case errors.Is(err, funnel.ErrPanelOutOfRange):
		httpx.WriteError(ctx, w, httpx.NewError("panel_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, funnel.ErrUnknownBundleOffer):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_offer", err.Error(), http.StatusBadRequest))
	case errors.Is(err, funnel.ErrUnknownDeliveryOption):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_delivery_option", err.Error(), http.StatusBadRequest))
	case errors.Is(err, funnel.ErrUnknownPaymentMethod):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_payment_method", err.Error(), http.StatusBadRequest))
	case errors.Is(err, funnel.ErrUnknownField):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_field", err.Error(), http.StatusNotFound))
	case isConfirmError(err):
		writeConfirmError(ctx, w, bundle, lang, err, nil)
	default:
		if envelope, ok := httpx.AsError(err); ok {
			httpx.WriteError(ctx, w, envelope)
			return
		}
		requestctx.Logger(ctx).Error("funnel request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("funnel_error", "failed to update checkout", http.StatusInternalServerError))
	}
}

func writeConfirmError(ctx context.Context, w http.ResponseWriter, bundle *i18n.Bundle, lang string, err error, invalid []funnel.FieldKey) {
	details := map[string]any{"problems": buildProblems(bundle, lang, err)}
	if len(invalid) > 0 {
		details["fields"] = invalid
	}
	httpx.WriteError(ctx, w, httpx.NewError("confirmation_incomplete", "checkout is not ready for confirmation", http.StatusUnprocessableEntity).WithDetails(details))
}
