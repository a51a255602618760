package funnel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/subject"
)

// BundleOffer is a multi-item purchase option ("buy 2", "buy 3") with its
// own price.
type BundleOffer struct {
	ID                 string `json:"id" yaml:"id"`
	Label              string `json:"label" yaml:"label"`
	NumberOfItems      int    `json:"numberOfItems" yaml:"items"`
	Price              int64  `json:"price" yaml:"price"`
	PriceAfterDiscount int64  `json:"price_after_discount" yaml:"price_after_discount"`
	Badge              string `json:"badge,omitempty" yaml:"badge"`
}

// BundleState is the observable state of BundleOptions.
type BundleState struct {
	Offers             []BundleOffer `json:"offers"`
	Selected           string        `json:"selected,omitempty"`
	NumberOfItems      int           `json:"numberOfItems"`
	Price              int64         `json:"price"`
	PriceAfterDiscount int64         `json:"price_after_discount"`
}

// BundleOptions tracks which bundle offer, if any, is chosen.
type BundleOptions struct {
	*subject.Subject[BundleState]
}

// NewBundleOptions constructs the subject over the product's offers.
func NewBundleOptions(offers []BundleOffer, logger *zap.Logger) *BundleOptions {
	return &BundleOptions{
		Subject: subject.New("bundle_options", BundleState{Offers: append([]BundleOffer(nil), offers...)}, logger),
	}
}

// SelectOffer chooses an offer by id.
func (b *BundleOptions) SelectOffer(id string) error {
	id = strings.TrimSpace(id)
	offer, ok := b.find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownBundleOffer, id)
	}
	b.Mutate(func(s *BundleState) {
		s.Selected = offer.ID
		s.NumberOfItems = offer.NumberOfItems
		s.Price = offer.Price
		s.PriceAfterDiscount = offer.PriceAfterDiscount
	})
	return nil
}

// ClearOffer returns to a single-item purchase.
func (b *BundleOptions) ClearOffer() {
	b.Mutate(func(s *BundleState) {
		s.Selected = ""
		s.NumberOfItems = 0
		s.Price = 0
		s.PriceAfterDiscount = 0
	})
}

// SelectedOffer returns the chosen offer.
func (b *BundleOptions) SelectedOffer() (BundleOffer, bool) {
	st := b.State()
	if st.Selected == "" {
		return BundleOffer{}, false
	}
	return b.find(st.Selected)
}

func (b *BundleOptions) find(id string) (BundleOffer, bool) {
	for _, offer := range b.State().Offers {
		if offer.ID == id {
			return offer, true
		}
	}
	return BundleOffer{}, false
}

// CustomOption is the option selection of one bundle line item.
type CustomOption struct {
	PanelIndex             int      `json:"panelIndex"`
	FirstOption            string   `json:"firstOption,omitempty"`
	SecondOption           string   `json:"secondOption,omitempty"`
	NumberOfOptions        int      `json:"numberOfOptions"`
	SKUID                  SKU      `json:"sku_id,omitempty"`
	Image                  string   `json:"image,omitempty"`
	AvailableSecondOptions []string `json:"availableSecondOptions"`
	Complete               bool     `json:"complete"`
}

// PanelUpdate carries the fields to merge into a panel. Nil fields are left
// unchanged; an empty string clears the axis.
type PanelUpdate struct {
	FirstOption  *string `json:"firstOption"`
	SecondOption *string `json:"secondOption"`
}

// PanelsState is the observable state of CustomOptionBundles.
type PanelsState struct {
	Panels []CustomOption `json:"panels"`
}

// CustomOptionBundles holds one independent option selection per bundle line
// item, keyed by panel index.
type CustomOptionBundles struct {
	*subject.Subject[PanelsState]

	data   *OptionData
	logger *zap.Logger
}

// NewCustomOptionBundles constructs the subject with no panels.
func NewCustomOptionBundles(logger *zap.Logger) *CustomOptionBundles {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomOptionBundles{
		Subject: subject.New("custom_option_bundles", PanelsState{}, logger),
		logger:  logger,
	}
}

// Initialize replaces the panels with count fresh selections.
func (c *CustomOptionBundles) Initialize(data *OptionData, count int) {
	c.data = data
	if count < 0 {
		count = 0
	}
	panels := make([]CustomOption, count)
	for i := range panels {
		line := data.Resolve("", "")
		panels[i] = CustomOption{
			PanelIndex:             i,
			NumberOfOptions:        data.NumberOfOptions(),
			SKUID:                  line.SKUID,
			Image:                  line.Image,
			AvailableSecondOptions: data.SecondValues(),
			Complete:               data.Complete("", ""),
		}
	}
	c.SetState(PanelsState{Panels: panels})
}

// UpdatePanelOption merges update into the panel at panelIndex only.
func (c *CustomOptionBundles) UpdatePanelOption(panelIndex int, update PanelUpdate) error {
	st := c.State()
	pos := -1
	for i, panel := range st.Panels {
		if panel.PanelIndex == panelIndex {
			pos = i
			break
		}
	}
	if pos < 0 {
		return fmt.Errorf("%w: %d", ErrPanelOutOfRange, panelIndex)
	}
	panel := st.Panels[pos]

	first := panel.FirstOption
	if update.FirstOption != nil {
		first = strings.TrimSpace(*update.FirstOption)
		if first != "" {
			if !c.data.HasFirstAxis() {
				return ErrAxisUndefined
			}
			if !c.data.FirstOption.has(first) {
				return fmt.Errorf("%w: %q", ErrUnknownOptionValue, first)
			}
		}
	}
	available := c.data.SecondCandidates(first)
	second := panel.SecondOption
	if update.SecondOption != nil {
		second = strings.TrimSpace(*update.SecondOption)
		if second != "" {
			if !c.data.HasSecondAxis() {
				return ErrAxisUndefined
			}
			if !c.data.SecondOption.has(second) {
				return fmt.Errorf("%w: %q", ErrUnknownOptionValue, second)
			}
			if !contains(available, second) {
				return fmt.Errorf("%w: %q with %q", ErrOptionUnavailable, second, first)
			}
		}
	} else if second != "" && !contains(available, second) {
		second = ""
	}

	line := c.data.Resolve(first, second)
	c.Mutate(func(s *PanelsState) {
		panels := append([]CustomOption(nil), s.Panels...)
		p := panels[pos]
		p.FirstOption = first
		p.SecondOption = second
		p.SKUID = line.SKUID
		p.Image = line.Image
		p.AvailableSecondOptions = available
		p.Complete = c.data.Complete(first, second)
		panels[pos] = p
		s.Panels = panels
	})
	c.logger.Debug("bundle panel updated", zap.Int("panel", panelIndex), zap.String("first", first), zap.String("second", second))
	return nil
}

// AllPanelsComplete reports whether every panel has a finished selection.
// It is false when there are no panels.
func (c *CustomOptionBundles) AllPanelsComplete() bool {
	panels := c.State().Panels
	if len(panels) == 0 {
		return false
	}
	for _, panel := range panels {
		if !panel.Complete {
			return false
		}
	}
	return true
}
