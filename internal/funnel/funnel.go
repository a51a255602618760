// Package funnel holds the checkout state of one single-product funnel: the
// option resolver, bundle panels, delivery and payment choice, the customer
// form, and pricing derived from them.
package funnel

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// Config describes the product a funnel sells.
type Config struct {
	ProductID string
	Currency  string

	OptionData         *OptionData
	IsVariant          bool
	BaseQuantity       int
	SKU                SKU
	Price              int64
	PriceAfterDiscount int64

	Offers   []BundleOffer
	Delivery []DeliveryOption
	Payment  []PaymentMethod

	Logger *zap.Logger
}

// Funnel groups one instance of every subject for a product. A Funnel is not
// safe for concurrent use.
type Funnel struct {
	productID string
	currency  string

	Options  *CustomOptionsNonBundle
	Bundle   *BundleOptions
	Panels   *CustomOptionBundles
	Delivery *DeliveryOptions
	Payment  *PaymentOptions
	Form     *FormFields

	logger      *zap.Logger
	lastOffer   string
	unsubscribe []func()
}

// New wires the subjects for cfg. Choosing a bundle offer re-initialises one
// panel per bundle item.
func New(cfg Config) *Funnel {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("product_id", cfg.ProductID))

	f := &Funnel{
		productID: cfg.ProductID,
		currency:  strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		Options:   NewCustomOptionsNonBundle(logger),
		Bundle:    NewBundleOptions(cfg.Offers, logger),
		Panels:    NewCustomOptionBundles(logger),
		Delivery:  NewDeliveryOptions(cfg.Delivery, logger),
		Payment:   NewPaymentOptions(cfg.Payment, logger),
		Form:      NewFormFields(logger),
		logger:    logger,
	}
	f.Options.Initialize(cfg.OptionData, cfg.IsVariant, cfg.BaseQuantity, cfg.SKU, cfg.Price, cfg.PriceAfterDiscount)
	f.Panels.Initialize(cfg.OptionData, 0)

	data := cfg.OptionData
	f.unsubscribe = append(f.unsubscribe, f.Bundle.Subscribe(func(s BundleState) {
		if s.Selected == f.lastOffer {
			return
		}
		f.lastOffer = s.Selected
		f.Panels.Initialize(data, s.NumberOfItems)
	}))
	return f
}

// ProductID returns the product the funnel sells.
func (f *Funnel) ProductID() string { return f.productID }

// Currency returns the ISO currency code of every amount.
func (f *Funnel) Currency() string { return f.currency }

// Mode reports whether the buyer is purchasing a bundle or a single line.
func (f *Funnel) Mode() string {
	if f.Bundle.State().Selected != "" {
		return ModeBundle
	}
	return ModeSingle
}

// Quote prices the current state.
func (f *Funnel) Quote() Quote {
	return computeQuote(f.currency, f.Options.State(), f.Bundle.State(), f.Delivery.State())
}

// Snapshot is a point-in-time copy of every subject state.
type Snapshot struct {
	ProductID string         `json:"productId"`
	Mode      string         `json:"mode"`
	Options   NonBundleState `json:"options"`
	Bundle    BundleState    `json:"bundle"`
	Panels    PanelsState    `json:"panels"`
	Delivery  DeliveryState  `json:"delivery"`
	Payment   PaymentState   `json:"payment"`
	Form      FormState      `json:"form"`
	FormValid bool           `json:"formValid"`
	Quote     Quote          `json:"quote"`
}

// Snapshot captures the current state of the funnel.
func (f *Funnel) Snapshot() Snapshot {
	return Snapshot{
		ProductID: f.productID,
		Mode:      f.Mode(),
		Options:   f.Options.State(),
		Bundle:    f.Bundle.State(),
		Panels:    f.Panels.State(),
		Delivery:  f.Delivery.State(),
		Payment:   f.Payment.State(),
		Form:      f.Form.State(),
		FormValid: f.Form.AreAllFieldsValid(),
		Quote:     f.Quote(),
	}
}

// ConfirmationLine is one purchasable line shown in the confirmation step.
type ConfirmationLine struct {
	SKUID        SKU    `json:"sku_id,omitempty"`
	FirstOption  string `json:"firstOption,omitempty"`
	SecondOption string `json:"secondOption,omitempty"`
	Quantity     int    `json:"quantity"`
	Image        string `json:"image,omitempty"`
}

// Customer carries the submitted form values.
type Customer struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Notes    string `json:"notes,omitempty"`
}

// Confirmation is everything the purchase confirmation step displays.
type Confirmation struct {
	ProductID string             `json:"productId"`
	Mode      string             `json:"mode"`
	OfferID   string             `json:"offerId,omitempty"`
	Lines     []ConfirmationLine `json:"lines"`
	Delivery  DeliveryOption     `json:"delivery"`
	Payment   PaymentMethod      `json:"payment"`
	Customer  Customer           `json:"customer"`
	Quote     Quote              `json:"quote"`
}

// Confirm checks that the funnel is ready for purchase and returns the
// confirmation. When it is not, the error joins every problem found.
func (f *Funnel) Confirm() (Confirmation, error) {
	var problems []error

	mode := f.Mode()
	var lines []ConfirmationLine
	if mode == ModeBundle {
		if !f.Panels.AllPanelsComplete() {
			problems = append(problems, ErrPanelsIncomplete)
		}
		for _, p := range f.Panels.State().Panels {
			lines = append(lines, ConfirmationLine{
				SKUID:        p.SKUID,
				FirstOption:  p.FirstOption,
				SecondOption: p.SecondOption,
				Quantity:     1,
				Image:        p.Image,
			})
		}
	} else {
		st := f.Options.State()
		if !st.IsSelectionComplete {
			problems = append(problems, ErrSelectionIncomplete)
		}
		lines = append(lines, ConfirmationLine{
			SKUID:        st.SKUID,
			FirstOption:  st.FirstOption,
			SecondOption: st.SecondOption,
			Quantity:     st.Qty,
			Image:        st.Image,
		})
	}

	delivery, ok := f.Delivery.Selected()
	if !ok {
		problems = append(problems, ErrDeliveryMissing)
	}
	payment, ok := f.Payment.Selected()
	if !ok {
		problems = append(problems, ErrPaymentMissing)
	}
	if !f.Form.AreAllFieldsValid() {
		problems = append(problems, ErrFormInvalid)
	}
	if len(problems) > 0 {
		err := errors.Join(problems...)
		f.logger.Debug("confirmation blocked", zap.Error(err))
		return Confirmation{}, err
	}

	form := f.Form.State()
	return Confirmation{
		ProductID: f.productID,
		Mode:      mode,
		OfferID:   f.Bundle.State().Selected,
		Lines:     lines,
		Delivery:  delivery,
		Payment:   payment,
		Customer: Customer{
			FullName: form.FullName.Value,
			Phone:    form.Phone.Value,
			Email:    form.Email.Value,
			Address:  form.Address.Value,
			City:     form.City.Value,
			Notes:    form.Notes.Value,
		},
		Quote: f.Quote(),
	}, nil
}

// Close detaches the funnel's internal observers.
func (f *Funnel) Close() {
	for _, cancel := range f.unsubscribe {
		cancel()
	}
	f.unsubscribe = nil
}
