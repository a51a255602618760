package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/locales"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	bundle, err := i18n.Load(locales.FS, "en", []string{"ar"})
	require.NoError(t, err)
	return New(bundle)
}

func TestCheckFields(t *testing.T) {
	v := newValidator(t)

	cases := []struct {
		name  string
		key   funnel.FieldKey
		value string
		valid bool
		msg   string
	}{
		{"name ok", funnel.FieldFullName, "  Mona Adel ", true, ""},
		{"name empty", funnel.FieldFullName, "", false, "Full name is required"},
		{"name short", funnel.FieldFullName, "Mo", false, "Full name must be at least 3 characters"},
		{"phone ok", funnel.FieldPhone, "+20 100 123 4567", true, ""},
		{"phone letters", funnel.FieldPhone, "call me", false, "Enter a valid phone number"},
		{"phone too few digits", funnel.FieldPhone, "12-34", false, "Enter a valid phone number"},
		{"email ok", funnel.FieldEmail, "Mona@Example.com", true, ""},
		{"email bad", funnel.FieldEmail, "mona@", false, "Enter a valid email address"},
		{"address short", funnel.FieldAddress, "12", false, "Address must be at least 5 characters"},
		{"city ok", funnel.FieldCity, "Giza", true, ""},
		{"notes empty", funnel.FieldNotes, "", true, ""},
		{"notes long", funnel.FieldNotes, strings.Repeat("n", 501), false, "Notes must be at most 500 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := v.Check(tc.key, tc.value, "en")
			require.Equal(t, tc.valid, got.Valid)
			require.Equal(t, tc.msg, got.Message)
		})
	}
}

func TestCheckNormalisesValues(t *testing.T) {
	v := newValidator(t)

	require.Equal(t, "mona@example.com", v.Check(funnel.FieldEmail, " Mona@Example.com ", "en").Value)

	notes := v.Check(funnel.FieldNotes, `<b>ring</b> the bell<script>alert(1)</script>`, "en")
	require.True(t, notes.Valid)
	require.Equal(t, "ring the bell", notes.Value)

	notes = v.Check(funnel.FieldNotes, `Don't ring, call Tom & Jerry "after 5"`, "en")
	require.True(t, notes.Valid)
	require.Equal(t, `Don't ring, call Tom & Jerry "after 5"`, notes.Value)

	notes = v.Check(funnel.FieldNotes, `<i>Tom</i> & Jerry's`, "en")
	require.Equal(t, "Tom & Jerry's", notes.Value)
}

func TestCheckLocalisedMessages(t *testing.T) {
	v := newValidator(t)
	got := v.Check(funnel.FieldCity, "", "ar")
	require.False(t, got.Valid)
	require.Equal(t, "المدينة مطلوب", got.Message)
}

func TestResultUpdateFeedsForm(t *testing.T) {
	v := newValidator(t)
	form := funnel.NewFormFields(nil)

	require.NoError(t, form.UpdateField("email", v.Check(funnel.FieldEmail, "bad", "en").Update()))
	email := form.State().Email
	require.False(t, email.IsValid)
	require.True(t, email.Touched)
	require.Equal(t, "bad", email.Value)
	require.NotEmpty(t, email.ErrorMessage)

	require.NoError(t, form.UpdateField("email", v.Check(funnel.FieldEmail, "ok@example.com", "en").Update()))
	email = form.State().Email
	require.True(t, email.IsValid)
	require.Empty(t, email.ErrorMessage)
}

func TestNilBundleReturnsKeys(t *testing.T) {
	var v *Validator
	require.NotPanics(t, func() { v = New(nil) })
	require.Equal(t, "validation.phone", v.Check(funnel.FieldPhone, "x", "en").Message)
}
