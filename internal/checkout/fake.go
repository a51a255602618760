package checkout

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
)

func fakeOrderResponse(c funnel.Confirmation) OrderResponse {
	return OrderResponse{
		OrderID:   randomID("ord"),
		Status:    "pending",
		Total:     c.Quote.Total,
		Currency:  c.Quote.Currency,
		CreatedAt: time.Now().UTC(),
	}
}

func randomID(prefix string) string {
	return strings.TrimSpace(prefix) + "_" + strings.ToLower(ulid.Make().String())
}
