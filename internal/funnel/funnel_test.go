package funnel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func newTestFunnel(t *testing.T) *Funnel {
	t.Helper()
	f := New(Config{
		ProductID:    "hoodie",
		Currency:     " egp ",
		OptionData:   apparelCatalog(),
		IsVariant:    true,
		BaseQuantity: 5,
		Offers: []BundleOffer{
			{ID: "duo", Label: "Buy 2", NumberOfItems: 2, Price: 9000, PriceAfterDiscount: 8000},
			{ID: "trio", Label: "Buy 3", NumberOfItems: 3, Price: 12000},
		},
		Delivery: []DeliveryOption{
			{ID: "standard", Label: "Standard", Fee: 300, Default: true},
			{ID: "express", Label: "Express", Fee: 900},
		},
		Payment: []PaymentMethod{
			{ID: "cod", Label: "Cash on delivery", Kind: PaymentKindCOD},
		},
	})
	t.Cleanup(f.Close)
	return f
}

func fillForm(t *testing.T, form *FormFields) {
	t.Helper()
	values := map[string]string{
		"full-name": "Mona Adel",
		"phone":     "+201001234567",
		"email":     "mona@example.com",
		"address":   "12 Tahrir St",
		"city":      "Cairo",
	}
	for id, v := range values {
		require.NoError(t, form.UpdateField(id, FieldUpdate{Value: strPtr(v), IsValid: boolPtr(true), Touched: boolPtr(true)}))
	}
}

func TestNewNormalisesCurrencyAndDefaults(t *testing.T) {
	f := newTestFunnel(t)
	require.Equal(t, "EGP", f.Currency())
	require.Equal(t, "hoodie", f.ProductID())
	require.Equal(t, ModeSingle, f.Mode())

	st := f.Delivery.State()
	require.Equal(t, "standard", st.Selected)
	require.EqualValues(t, 300, st.Fee)
	require.Empty(t, f.Payment.State().Selected)
	require.Empty(t, f.Panels.State().Panels)
}

func TestSelectOfferBuildsPanels(t *testing.T) {
	f := newTestFunnel(t)

	require.NoError(t, f.Bundle.SelectOffer("duo"))
	require.Equal(t, ModeBundle, f.Mode())
	panels := f.Panels.State().Panels
	require.Len(t, panels, 2)
	for i, p := range panels {
		require.Equal(t, i, p.PanelIndex)
		require.Equal(t, 2, p.NumberOfOptions)
		require.False(t, p.Complete)
		require.Equal(t, []string{"S", "M", "L"}, p.AvailableSecondOptions)
	}
	require.False(t, f.Panels.AllPanelsComplete())

	require.NoError(t, f.Bundle.SelectOffer("trio"))
	require.Len(t, f.Panels.State().Panels, 3)

	f.Bundle.ClearOffer()
	require.Equal(t, ModeSingle, f.Mode())
	require.Empty(t, f.Panels.State().Panels)

	err := f.Bundle.SelectOffer("dozen")
	require.ErrorIs(t, err, ErrUnknownBundleOffer)
}

func TestReselectingSameOfferKeepsPanels(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Bundle.SelectOffer("duo"))
	require.NoError(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("red")}))

	require.NoError(t, f.Bundle.SelectOffer("duo"))
	require.Equal(t, "red", f.Panels.State().Panels[0].FirstOption)
}

func TestPanelUpdatesAreIndependent(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Bundle.SelectOffer("duo"))

	require.NoError(t, f.Panels.UpdatePanelOption(1, PanelUpdate{FirstOption: strPtr("red")}))
	panels := f.Panels.State().Panels
	require.Empty(t, panels[0].FirstOption)
	require.Equal(t, "red", panels[1].FirstOption)
	require.Equal(t, []string{"M", "L"}, panels[1].AvailableSecondOptions)

	require.NoError(t, f.Panels.UpdatePanelOption(1, PanelUpdate{SecondOption: strPtr("M")}))
	panels = f.Panels.State().Panels
	require.True(t, panels[1].Complete)
	require.Equal(t, SKU("21"), panels[1].SKUID)
	require.False(t, f.Panels.AllPanelsComplete())

	require.NoError(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("blue"), SecondOption: strPtr("S")}))
	require.True(t, f.Panels.AllPanelsComplete())
	require.Equal(t, "blue-s.jpg", f.Panels.State().Panels[0].Image)

	// changing the color drops the size that is no longer offered
	require.NoError(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("red")}))
	p0 := f.Panels.State().Panels[0]
	require.Empty(t, p0.SecondOption)
	require.False(t, p0.Complete)
	require.Equal(t, "M", f.Panels.State().Panels[1].SecondOption)
}

func TestPanelUpdateErrors(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Bundle.SelectOffer("duo"))

	require.ErrorIs(t, f.Panels.UpdatePanelOption(2, PanelUpdate{FirstOption: strPtr("red")}), ErrPanelOutOfRange)
	require.ErrorIs(t, f.Panels.UpdatePanelOption(-1, PanelUpdate{}), ErrPanelOutOfRange)
	require.ErrorIs(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("purple")}), ErrUnknownOptionValue)
	require.ErrorIs(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("red"), SecondOption: strPtr("S")}), ErrOptionUnavailable)
	require.Empty(t, f.Panels.State().Panels[0].FirstOption)

	plain := NewCustomOptionBundles(nil)
	plain.Initialize(nil, 1)
	require.True(t, plain.AllPanelsComplete())
	require.ErrorIs(t, plain.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("red")}), ErrAxisUndefined)
}

func TestFormValidity(t *testing.T) {
	form := NewFormFields(nil)
	require.False(t, form.AreAllFieldsValid())
	require.Len(t, form.InvalidFields(), 5)
	require.True(t, form.State().Notes.IsValid)
	require.Equal(t, "full-name", form.State().FullName.ID)

	fillForm(t, form)
	require.True(t, form.AreAllFieldsValid())
	require.Empty(t, form.InvalidFields())

	// optional notes never block
	require.NoError(t, form.UpdateField("notes", FieldUpdate{IsValid: boolPtr(false)}))
	require.True(t, form.AreAllFieldsValid())

	require.NoError(t, form.UpdateField("email", FieldUpdate{IsValid: boolPtr(false), ErrorMessage: strPtr("invalid email")}))
	require.False(t, form.AreAllFieldsValid())
	require.Equal(t, []FieldKey{FieldEmail}, form.InvalidFields())
	email := form.State().Email
	require.Equal(t, "mona@example.com", email.Value)
	require.Equal(t, "invalid email", email.ErrorMessage)

	require.ErrorIs(t, form.UpdateField("zip", FieldUpdate{}), ErrUnknownField)
}

func TestResolveField(t *testing.T) {
	cases := map[string]FieldKey{
		"full-name": FieldFullName,
		"fullName":  FieldFullName,
		" city ":    FieldCity,
		"notes":     FieldNotes,
	}
	for in, want := range cases {
		got, ok := ResolveField(in)
		if !ok || got != want {
			t.Fatalf("ResolveField(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ResolveField("postcode"); ok {
		t.Fatalf("expected unknown field")
	}
}

func TestQuoteSingle(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Options.UpdateFirstOption("red"))
	require.NoError(t, f.Options.UpdateSecondOption("M"))
	f.Options.UpdateQuantity(2)

	q := f.Quote()
	require.Equal(t, Quote{
		Currency:    "EGP",
		Mode:        ModeSingle,
		UnitPrice:   4000,
		Quantity:    2,
		Subtotal:    10000,
		Discount:    2000,
		DeliveryFee: 300,
		Total:       8300,
	}, q)

	require.NoError(t, f.Delivery.SetDeliveryOption("express"))
	require.EqualValues(t, 8900, f.Quote().Total)
	require.ErrorIs(t, f.Delivery.SetDeliveryOption("drone"), ErrUnknownDeliveryOption)
}

func TestQuoteBundle(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Bundle.SelectOffer("duo"))

	q := f.Quote()
	require.Equal(t, ModeBundle, q.Mode)
	require.Equal(t, 2, q.Quantity)
	require.EqualValues(t, 9000, q.Subtotal)
	require.EqualValues(t, 1000, q.Discount)
	require.EqualValues(t, 4000, q.UnitPrice)
	require.EqualValues(t, 8300, q.Total)

	require.NoError(t, f.Bundle.SelectOffer("trio"))
	q = f.Quote()
	require.EqualValues(t, 0, q.Discount)
	require.EqualValues(t, 12300, q.Total)
}

func TestDiscountIgnoresNonsense(t *testing.T) {
	require.EqualValues(t, 0, discount(100, 0))
	require.EqualValues(t, 0, discount(100, 100))
	require.EqualValues(t, 0, discount(100, 120))
	require.EqualValues(t, 30, discount(100, 70))
}

func TestConfirmReportsEveryProblem(t *testing.T) {
	f := newTestFunnel(t)
	_, err := f.Confirm()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrSelectionIncomplete))
	require.True(t, errors.Is(err, ErrPaymentMissing))
	require.True(t, errors.Is(err, ErrFormInvalid))
	require.False(t, errors.Is(err, ErrDeliveryMissing))

	require.NoError(t, f.Bundle.SelectOffer("duo"))
	_, err = f.Confirm()
	require.ErrorIs(t, err, ErrPanelsIncomplete)
	require.False(t, errors.Is(err, ErrSelectionIncomplete))
}

func TestConfirmSingle(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Options.UpdateFirstOption("blue"))
	require.NoError(t, f.Options.UpdateSecondOption("S"))
	f.Options.UpdateQuantity(3)
	require.NoError(t, f.Payment.SetPaymentOption("cod"))
	fillForm(t, f.Form)

	c, err := f.Confirm()
	require.NoError(t, err)
	require.Equal(t, ModeSingle, c.Mode)
	require.Empty(t, c.OfferID)
	require.Equal(t, []ConfirmationLine{{SKUID: "31", FirstOption: "blue", SecondOption: "S", Quantity: 3, Image: "blue-s.jpg"}}, c.Lines)
	require.Equal(t, "standard", c.Delivery.ID)
	require.Equal(t, PaymentKindCOD, c.Payment.Kind)
	require.Equal(t, "Mona Adel", c.Customer.FullName)
	require.EqualValues(t, 3*5500+300, c.Quote.Total)
}

func TestConfirmBundle(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Bundle.SelectOffer("duo"))
	require.NoError(t, f.Panels.UpdatePanelOption(0, PanelUpdate{FirstOption: strPtr("red"), SecondOption: strPtr("L")}))
	require.NoError(t, f.Panels.UpdatePanelOption(1, PanelUpdate{FirstOption: strPtr("blue"), SecondOption: strPtr("M")}))
	require.NoError(t, f.Payment.SetPaymentOption("cod"))
	fillForm(t, f.Form)

	c, err := f.Confirm()
	require.NoError(t, err)
	require.Equal(t, "duo", c.OfferID)
	require.Len(t, c.Lines, 2)
	require.Equal(t, SKU("22"), c.Lines[0].SKUID)
	require.Equal(t, SKU("32"), c.Lines[1].SKUID)
	require.Equal(t, 1, c.Lines[1].Quantity)
}

func TestCloseDetachesPanelWiring(t *testing.T) {
	f := newTestFunnel(t)
	require.Equal(t, 1, f.Bundle.Observers())
	f.Close()
	require.Equal(t, 0, f.Bundle.Observers())

	require.NoError(t, f.Bundle.SelectOffer("duo"))
	require.Empty(t, f.Panels.State().Panels)
}

func TestSnapshot(t *testing.T) {
	f := newTestFunnel(t)
	require.NoError(t, f.Options.UpdateFirstOption("green"))
	snap := f.Snapshot()
	require.Equal(t, "hoodie", snap.ProductID)
	require.Equal(t, "green", snap.Options.FirstOption)
	require.False(t, snap.FormValid)
	require.Equal(t, f.Quote(), snap.Quote)
}
