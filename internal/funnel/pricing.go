package funnel

// Purchase modes.
const (
	ModeSingle = "single"
	ModeBundle = "bundle"
)

// Quote is the price breakdown of the current funnel state. Amounts are in
// currency minor units.
type Quote struct {
	Currency    string `json:"currency"`
	Mode        string `json:"mode"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
	Discount    int64  `json:"discount"`
	DeliveryFee int64  `json:"deliveryFee"`
	Total       int64  `json:"total"`
}

// computeQuote prices a single-line purchase from the resolved selection, or a
// bundle purchase from the chosen offer, and adds the delivery fee.
func computeQuote(currency string, single NonBundleState, bundle BundleState, delivery DeliveryState) Quote {
	q := Quote{Currency: currency, DeliveryFee: delivery.Fee}
	if bundle.Selected != "" {
		q.Mode = ModeBundle
		q.Quantity = bundle.NumberOfItems
		q.Subtotal = bundle.Price
		q.Discount = discount(bundle.Price, bundle.PriceAfterDiscount)
		if bundle.NumberOfItems > 0 {
			q.UnitPrice = (bundle.Price - q.Discount) / int64(bundle.NumberOfItems)
		}
	} else {
		q.Mode = ModeSingle
		q.Quantity = single.Qty
		if q.Quantity < 1 {
			q.Quantity = 1
		}
		perUnit := discount(single.Price, single.PriceAfterDiscount)
		q.UnitPrice = single.Price - perUnit
		q.Subtotal = single.Price * int64(q.Quantity)
		q.Discount = perUnit * int64(q.Quantity)
	}
	q.Total = q.Subtotal - q.Discount + q.DeliveryFee
	return q
}

// discount returns how much lower the discounted price is. A zero or higher
// discounted price means no discount applies.
func discount(price, afterDiscount int64) int64 {
	if afterDiscount <= 0 || afterDiscount >= price {
		return 0
	}
	return price - afterDiscount
}
