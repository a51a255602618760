package funnel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/subject"
)

// DeliveryOption is a shipping choice offered on the funnel.
type DeliveryOption struct {
	ID            string `json:"id" yaml:"id"`
	Label         string `json:"label" yaml:"label"`
	Fee           int64  `json:"fee" yaml:"fee"`
	EstimatedDays int    `json:"estimatedDays,omitempty" yaml:"estimated_days"`
	Default       bool   `json:"default,omitempty" yaml:"default"`
}

// DeliveryState is the observable state of DeliveryOptions.
type DeliveryState struct {
	Options  []DeliveryOption `json:"options"`
	Selected string           `json:"selected,omitempty"`
	Fee      int64            `json:"fee"`
}

// DeliveryOptions tracks the chosen delivery option.
type DeliveryOptions struct {
	*subject.Subject[DeliveryState]
}

// NewDeliveryOptions constructs the subject, preselecting the default option
// when one is flagged.
func NewDeliveryOptions(options []DeliveryOption, logger *zap.Logger) *DeliveryOptions {
	st := DeliveryState{Options: append([]DeliveryOption(nil), options...)}
	for _, opt := range options {
		if opt.Default {
			st.Selected = opt.ID
			st.Fee = opt.Fee
			break
		}
	}
	return &DeliveryOptions{Subject: subject.New("delivery_options", st, logger)}
}

// SetDeliveryOption selects a configured option by id.
func (d *DeliveryOptions) SetDeliveryOption(id string) error {
	id = strings.TrimSpace(id)
	opt, ok := d.find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDeliveryOption, id)
	}
	d.Mutate(func(s *DeliveryState) {
		s.Selected = opt.ID
		s.Fee = opt.Fee
	})
	return nil
}

// Selected returns the chosen option.
func (d *DeliveryOptions) Selected() (DeliveryOption, bool) {
	return d.find(d.State().Selected)
}

func (d *DeliveryOptions) find(id string) (DeliveryOption, bool) {
	if id == "" {
		return DeliveryOption{}, false
	}
	for _, opt := range d.State().Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return DeliveryOption{}, false
}
