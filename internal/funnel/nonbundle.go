package funnel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/subject"
)

// Selection is the line currently chosen for a single (non-bundle) purchase.
type Selection struct {
	FirstOption        string `json:"firstOption,omitempty"`
	SecondOption       string `json:"secondOption,omitempty"`
	SKUID              SKU    `json:"sku_id,omitempty"`
	Hex                string `json:"hex,omitempty"`
	Price              int64  `json:"price"`
	PriceAfterDiscount int64  `json:"price_after_discount"`
	Qty                int    `json:"qty"`
	Image              string `json:"image,omitempty"`
}

// NonBundleState is the observable state of CustomOptionsNonBundle.
type NonBundleState struct {
	Selection
	AvailableFirstOptions  []string `json:"availableFirstOptions"`
	AvailableSecondOptions []string `json:"availableSecondOptions"`
	MaxQuantity            int      `json:"maxQuantity"`
	IsSelectionComplete    bool     `json:"isSelectionComplete"`
	IsVariant              bool     `json:"isVariant"`
}

// CustomOptionsNonBundle resolves a one- or two-axis option selection against
// the product catalog into a concrete SKU, price and stock cap.
type CustomOptionsNonBundle struct {
	*subject.Subject[NonBundleState]

	data        *OptionData
	fallbackMax int
	logger      *zap.Logger
}

// NewCustomOptionsNonBundle constructs the resolver with an empty selection.
func NewCustomOptionsNonBundle(logger *zap.Logger) *CustomOptionsNonBundle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomOptionsNonBundle{
		Subject: subject.New("custom_options_non_bundle", NonBundleState{}, logger),
		logger:  logger,
	}
}

// Initialize loads the product catalog. Non-variant products resolve
// immediately to the fixed sku and price; variant products start with an
// incomplete selection over the full candidate lists.
func (c *CustomOptionsNonBundle) Initialize(data *OptionData, isVariant bool, baseQtyNonVariant int, skuNoVariant SKU, priceNoVariant, priceAfterDiscountNoVariant int64) {
	c.data = data
	c.fallbackMax = baseQtyNonVariant
	if isVariant && data.NumberOfOptions() == 0 {
		c.logger.Warn("variant product without option axes; treating as non-variant")
		isVariant = false
	}
	if !isVariant {
		image := ""
		if data != nil {
			image = data.BaseImage
		}
		c.SetState(NonBundleState{
			Selection: Selection{
				SKUID:              skuNoVariant,
				Price:              priceNoVariant,
				PriceAfterDiscount: priceAfterDiscountNoVariant,
				Qty:                1,
				Image:              image,
			},
			MaxQuantity:         baseQtyNonVariant,
			IsSelectionComplete: true,
		})
		return
	}
	c.SetState(c.freshVariantState())
}

func (c *CustomOptionsNonBundle) freshVariantState() NonBundleState {
	st := NonBundleState{
		Selection: Selection{
			Price:              c.data.BasePrice,
			PriceAfterDiscount: c.data.BasePriceAfterDiscount,
			Image:              c.data.BaseImage,
			Qty:                1,
		},
		AvailableFirstOptions:  c.data.FirstValues(),
		AvailableSecondOptions: c.data.SecondValues(),
		MaxQuantity:            c.catalogMax(),
		IsVariant:              true,
	}
	st.IsSelectionComplete = c.data.Complete("", "")
	return st
}

// Data returns the catalog the resolver was initialised with.
func (c *CustomOptionsNonBundle) Data() *OptionData { return c.data }

// UpdateFirstOption selects a first-axis value, or clears it when value is
// empty. Second-axis candidates are recomputed and a second value that is no
// longer legal is dropped. Quantity always resets to 1.
func (c *CustomOptionsNonBundle) UpdateFirstOption(value string) error {
	st := c.State()
	if !st.IsVariant || !c.data.HasFirstAxis() {
		return ErrAxisUndefined
	}
	value = strings.TrimSpace(value)
	if value != "" && !c.data.FirstOption.has(value) {
		return fmt.Errorf("%w: %q", ErrUnknownOptionValue, value)
	}

	available := c.data.SecondCandidates(value)
	second := st.SecondOption
	if second != "" && !contains(available, second) {
		c.logger.Debug("clearing second option no longer available",
			zap.String("first", value), zap.String("second", second))
		second = ""
	}

	c.Mutate(func(s *NonBundleState) {
		s.FirstOption = value
		s.SecondOption = second
		s.AvailableSecondOptions = available
		c.resolve(s)
	})
	return nil
}

// UpdateSecondOption selects a second-axis value, or clears it when value is
// empty. It is a no-op when the catalog has no second axis.
func (c *CustomOptionsNonBundle) UpdateSecondOption(value string) error {
	st := c.State()
	if !st.IsVariant || !c.data.HasSecondAxis() {
		c.logger.Debug("second option ignored; catalog has no second axis")
		return nil
	}
	value = strings.TrimSpace(value)
	if value != "" {
		if !c.data.SecondOption.has(value) {
			return fmt.Errorf("%w: %q", ErrUnknownOptionValue, value)
		}
		if !contains(st.AvailableSecondOptions, value) {
			return fmt.Errorf("%w: %q with %q", ErrOptionUnavailable, value, st.FirstOption)
		}
	}

	c.Mutate(func(s *NonBundleState) {
		s.SecondOption = value
		c.resolve(s)
	})
	return nil
}

// UpdateQuantity stores qty clamped into [1, MaxQuantity].
func (c *CustomOptionsNonBundle) UpdateQuantity(qty int) {
	c.Mutate(func(s *NonBundleState) {
		s.Qty = ClampQuantity(qty, s.MaxQuantity)
	})
}

// ClearOptions resets both axes. Non-variant products keep their fixed line;
// variant products return to the freshly initialised state.
func (c *CustomOptionsNonBundle) ClearOptions() {
	if !c.State().IsVariant {
		c.Mutate(func(s *NonBundleState) {
			s.FirstOption = ""
			s.SecondOption = ""
			s.Qty = 1
		})
		return
	}
	c.SetState(c.freshVariantState())
}

// resolve recomputes everything derived from the current pair.
func (c *CustomOptionsNonBundle) resolve(s *NonBundleState) {
	line := c.data.Resolve(s.FirstOption, s.SecondOption)
	s.SKUID = line.SKUID
	s.Hex = line.Hex
	s.Price = line.Price
	s.PriceAfterDiscount = line.PriceAfterDiscount
	s.Image = line.Image
	if limit, ok := c.data.MaxQuantity(s.FirstOption, s.SecondOption); ok {
		s.MaxQuantity = limit
	} else {
		s.MaxQuantity = c.catalogMax()
	}
	s.Qty = 1
	s.IsSelectionComplete = c.data.Complete(s.FirstOption, s.SecondOption)
}

func (c *CustomOptionsNonBundle) catalogMax() int {
	if limit, ok := c.data.CatalogMaxQuantity(); ok {
		return limit
	}
	if c.fallbackMax > 0 {
		return c.fallbackMax
	}
	return 1
}

// ClampQuantity returns max(1, min(qty, maxQuantity)).
func ClampQuantity(qty, maxQuantity int) int {
	if qty > maxQuantity {
		qty = maxQuantity
	}
	if qty < 1 {
		qty = 1
	}
	return qty
}
