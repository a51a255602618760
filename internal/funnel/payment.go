package funnel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/subject"
)

// Payment method kinds.
const (
	PaymentKindCOD    = "cod"
	PaymentKindCard   = "card"
	PaymentKindWallet = "wallet"
)

// PaymentMethod is a payment choice offered on the funnel.
type PaymentMethod struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Kind    string `json:"kind" yaml:"kind"`
	Default bool   `json:"default,omitempty" yaml:"default"`
}

// PaymentState is the observable state of PaymentOptions.
type PaymentState struct {
	Methods  []PaymentMethod `json:"methods"`
	Selected string          `json:"selected,omitempty"`
}

// PaymentOptions tracks the chosen payment method.
type PaymentOptions struct {
	*subject.Subject[PaymentState]
}

// NewPaymentOptions constructs the subject, preselecting the default method
// when one is flagged.
func NewPaymentOptions(methods []PaymentMethod, logger *zap.Logger) *PaymentOptions {
	st := PaymentState{Methods: append([]PaymentMethod(nil), methods...)}
	for _, m := range methods {
		if m.Default {
			st.Selected = m.ID
			break
		}
	}
	return &PaymentOptions{Subject: subject.New("payment_options", st, logger)}
}

// SetPaymentOption selects a configured method by id.
func (p *PaymentOptions) SetPaymentOption(id string) error {
	id = strings.TrimSpace(id)
	method, ok := p.find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, id)
	}
	p.Mutate(func(s *PaymentState) { s.Selected = method.ID })
	return nil
}

// Selected returns the chosen method.
func (p *PaymentOptions) Selected() (PaymentMethod, bool) {
	return p.find(p.State().Selected)
}

func (p *PaymentOptions) find(id string) (PaymentMethod, bool) {
	if id == "" {
		return PaymentMethod{}, false
	}
	for _, m := range p.State().Methods {
		if m.ID == id {
			return m, true
		}
	}
	return PaymentMethod{}, false
}
