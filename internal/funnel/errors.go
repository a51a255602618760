package funnel

import "errors"

var (
	// ErrAxisUndefined is returned when an option axis is updated on a product that does not define it.
	ErrAxisUndefined = errors.New("funnel: option axis not defined for product")
	// ErrUnknownOptionValue is returned for values outside the catalog axis.
	ErrUnknownOptionValue = errors.New("funnel: unknown option value")
	// ErrOptionUnavailable is returned when a second-axis value cannot be combined with the selected first value.
	ErrOptionUnavailable = errors.New("funnel: option value unavailable for current selection")
	// ErrPanelOutOfRange is returned when a bundle panel index does not exist.
	ErrPanelOutOfRange = errors.New("funnel: bundle panel out of range")
	// ErrUnknownBundleOffer is returned when selecting an offer the product does not carry.
	ErrUnknownBundleOffer = errors.New("funnel: unknown bundle offer")
	// ErrUnknownDeliveryOption is returned when selecting an unconfigured delivery option.
	ErrUnknownDeliveryOption = errors.New("funnel: unknown delivery option")
	// ErrUnknownPaymentMethod is returned when selecting an unconfigured payment method.
	ErrUnknownPaymentMethod = errors.New("funnel: unknown payment method")
	// ErrUnknownField is returned for form field ids outside the fixed mapping.
	ErrUnknownField = errors.New("funnel: unknown form field")

	ErrSelectionIncomplete = errors.New("funnel: product options not fully selected")
	ErrPanelsIncomplete    = errors.New("funnel: bundle items not fully configured")
	ErrDeliveryMissing     = errors.New("funnel: delivery option not selected")
	ErrPaymentMissing      = errors.New("funnel: payment method not selected")
	ErrFormInvalid         = errors.New("funnel: customer details invalid")
)
