package handlers

import (
	"time"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/catalog"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/format"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/theme"
)

type themePayload struct {
	Key           string `json:"key"`
	Name          string `json:"name"`
	Direction     string `json:"direction"`
	DefaultLocale string `json:"defaultLocale"`
}

func buildThemePayload(t theme.Theme) themePayload {
	return themePayload{
		Key:           t.Key,
		Name:          t.Name,
		Direction:     string(t.Direction),
		DefaultLocale: t.DefaultLocale,
	}
}

type offerPayload struct {
	funnel.BundleOffer
	DisplayPrice              string `json:"displayPrice"`
	DisplayPriceAfterDiscount string `json:"displayPriceAfterDiscount,omitempty"`
}

type deliveryPayload struct {
	funnel.DeliveryOption
	DisplayFee    string `json:"displayFee"`
	EstimatedDate string `json:"estimatedDate,omitempty"`
}

type productSummary struct {
	Slug         string       `json:"slug"`
	Name         string       `json:"name"`
	Theme        themePayload `json:"theme"`
	Currency     string       `json:"currency"`
	DisplayPrice string       `json:"displayPrice"`
	Image        string       `json:"image,omitempty"`
}

type productPayload struct {
	productSummary
	Locale                    string                 `json:"locale"`
	DescriptionHTML           string                 `json:"descriptionHtml,omitempty"`
	Images                    []string               `json:"images,omitempty"`
	IsVariant                 bool                   `json:"isVariant"`
	Price                     int64                  `json:"price"`
	PriceAfterDiscount        int64                  `json:"price_after_discount"`
	DisplayPriceAfterDiscount string                 `json:"displayPriceAfterDiscount,omitempty"`
	OptionData                *funnel.OptionData     `json:"optionData,omitempty"`
	Offers                    []offerPayload         `json:"offers"`
	Delivery                  []deliveryPayload      `json:"delivery"`
	Payment                   []funnel.PaymentMethod `json:"payment"`
}

func entryPrice(p catalog.Product) (int64, int64) {
	if p.IsVariant && p.OptionData != nil && p.OptionData.BasePrice > 0 {
		return p.OptionData.BasePrice, p.OptionData.BasePriceAfterDiscount
	}
	return p.Price, p.PriceAfterDiscount
}

func buildProductSummary(p catalog.Product, lang string) productSummary {
	price, after := entryPrice(p)
	display := price
	if after > 0 && after < price {
		display = after
	}
	s := productSummary{
		Slug:         p.Slug,
		Name:         p.Name,
		Theme:        buildThemePayload(p.Theme),
		Currency:     p.Currency,
		DisplayPrice: format.FmtCurrency(display, p.Currency, lang),
	}
	if len(p.Images) > 0 {
		s.Image = p.Images[0]
	}
	return s
}

func buildProductPayload(p catalog.Product, lang string, now time.Time) productPayload {
	price, after := entryPrice(p)
	payload := productPayload{
		productSummary:     buildProductSummary(p, lang),
		Locale:             p.Locale,
		DescriptionHTML:    p.DescriptionHTML,
		Images:             p.Images,
		IsVariant:          p.IsVariant,
		Price:              price,
		PriceAfterDiscount: after,
		OptionData:         p.OptionData,
		Offers:             make([]offerPayload, 0, len(p.Offers)),
		Delivery:           make([]deliveryPayload, 0, len(p.Delivery)),
		Payment:            p.Payment,
	}
	if after > 0 && after < price {
		payload.DisplayPriceAfterDiscount = format.FmtCurrency(after, p.Currency, lang)
	}
	for _, offer := range p.Offers {
		op := offerPayload{BundleOffer: offer, DisplayPrice: format.FmtCurrency(offer.Price, p.Currency, lang)}
		if offer.PriceAfterDiscount > 0 && offer.PriceAfterDiscount < offer.Price {
			op.DisplayPriceAfterDiscount = format.FmtCurrency(offer.PriceAfterDiscount, p.Currency, lang)
		}
		payload.Offers = append(payload.Offers, op)
	}
	for _, d := range p.Delivery {
		payload.Delivery = append(payload.Delivery, deliveryPayload{
			DeliveryOption: d,
			DisplayFee:     format.FmtCurrency(d.Fee, p.Currency, lang),
			EstimatedDate:  format.FmtDeliveryWindow(now, d.EstimatedDays, lang),
		})
	}
	return payload
}

type totalsPayload struct {
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
	Discount    string `json:"discount"`
	DeliveryFee string `json:"deliveryFee"`
	Total       string `json:"total"`
}

func buildTotals(q funnel.Quote, lang string) totalsPayload {
	return totalsPayload{
		UnitPrice:   format.FmtCurrency(q.UnitPrice, q.Currency, lang),
		Subtotal:    format.FmtCurrency(q.Subtotal, q.Currency, lang),
		Discount:    format.FmtCurrency(q.Discount, q.Currency, lang),
		DeliveryFee: format.FmtCurrency(q.DeliveryFee, q.Currency, lang),
		Total:       format.FmtCurrency(q.Total, q.Currency, lang),
	}
}

type funnelPayload struct {
	ID      string          `json:"id"`
	Locale  string          `json:"locale,omitempty"`
	Funnel  funnel.Snapshot `json:"funnel"`
	Display totalsPayload   `json:"display"`
}

func buildFunnelPayload(id, lang string, snap funnel.Snapshot) funnelPayload {
	return funnelPayload{
		ID:      id,
		Locale:  lang,
		Funnel:  snap,
		Display: buildTotals(snap.Quote, lang),
	}
}

type confirmationPayload struct {
	ID           string              `json:"id"`
	Confirmation funnel.Confirmation `json:"confirmation"`
	Display      totalsPayload       `json:"display"`
}
