package funnel

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/subject"
)

// FieldKey names a customer detail collected by the funnel form.
type FieldKey string

const (
	FieldFullName FieldKey = "fullName"
	FieldPhone    FieldKey = "phone"
	FieldEmail    FieldKey = "email"
	FieldAddress  FieldKey = "address"
	FieldCity     FieldKey = "city"
	FieldNotes    FieldKey = "notes"
)

// FieldKeys lists every form field in display order.
var FieldKeys = []FieldKey{FieldFullName, FieldPhone, FieldEmail, FieldAddress, FieldCity, FieldNotes}

// fieldIDs maps form element ids to field keys.
var fieldIDs = map[string]FieldKey{
	"full-name": FieldFullName,
	"phone":     FieldPhone,
	"email":     FieldEmail,
	"address":   FieldAddress,
	"city":      FieldCity,
	"notes":     FieldNotes,
}

// Required reports whether the field takes part in aggregate validity.
func (k FieldKey) Required() bool { return k != FieldNotes }

// ElementID returns the form element id mapped to the key.
func (k FieldKey) ElementID() string {
	for id, key := range fieldIDs {
		if key == k {
			return id
		}
	}
	return string(k)
}

// ResolveField maps an element id, or a field key, to its key.
func ResolveField(id string) (FieldKey, bool) {
	id = strings.TrimSpace(id)
	if key, ok := fieldIDs[id]; ok {
		return key, true
	}
	for _, key := range FieldKeys {
		if string(key) == id {
			return key, true
		}
	}
	return "", false
}

// FormFieldData is the state of one form field.
type FormFieldData struct {
	ID           string `json:"id"`
	Value        string `json:"value"`
	IsValid      bool   `json:"isValid"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	Touched      bool   `json:"touched"`
}

// FieldUpdate carries the fields to merge; nil pointers are left unchanged.
type FieldUpdate struct {
	Value        *string
	IsValid      *bool
	ErrorMessage *string
	Touched      *bool
}

// FormState is the observable state of FormFields.
type FormState struct {
	FullName FormFieldData `json:"fullName"`
	Phone    FormFieldData `json:"phone"`
	Email    FormFieldData `json:"email"`
	Address  FormFieldData `json:"address"`
	City     FormFieldData `json:"city"`
	Notes    FormFieldData `json:"notes"`
}

// Field returns the data of key.
func (s FormState) Field(key FieldKey) FormFieldData {
	if f := s.field(key); f != nil {
		return *f
	}
	return FormFieldData{}
}

func (s *FormState) field(key FieldKey) *FormFieldData {
	switch key {
	case FieldFullName:
		return &s.FullName
	case FieldPhone:
		return &s.Phone
	case FieldEmail:
		return &s.Email
	case FieldAddress:
		return &s.Address
	case FieldCity:
		return &s.City
	case FieldNotes:
		return &s.Notes
	}
	return nil
}

// FormFields holds the customer details form. Validation happens outside;
// callers pass the outcome in through UpdateField.
type FormFields struct {
	*subject.Subject[FormState]
}

// NewFormFields constructs the form with empty fields. Notes is optional and
// starts valid.
func NewFormFields(logger *zap.Logger) *FormFields {
	var st FormState
	for _, key := range FieldKeys {
		f := st.field(key)
		f.ID = key.ElementID()
		f.IsValid = !key.Required()
	}
	return &FormFields{Subject: subject.New("form_fields", st, logger)}
}

// UpdateField merges update into the field identified by fieldID.
func (f *FormFields) UpdateField(fieldID string, update FieldUpdate) error {
	key, ok := ResolveField(fieldID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, fieldID)
	}
	f.Mutate(func(s *FormState) {
		field := s.field(key)
		if update.Value != nil {
			field.Value = *update.Value
		}
		if update.IsValid != nil {
			field.IsValid = *update.IsValid
		}
		if update.ErrorMessage != nil {
			field.ErrorMessage = *update.ErrorMessage
		}
		if update.Touched != nil {
			field.Touched = *update.Touched
		}
	})
	return nil
}

// AreAllFieldsValid ANDs the validity of the required fields.
func (f *FormFields) AreAllFieldsValid() bool {
	st := f.State()
	for _, key := range FieldKeys {
		if key.Required() && !st.Field(key).IsValid {
			return false
		}
	}
	return true
}

// InvalidFields lists the required fields that are not valid.
func (f *FormFields) InvalidFields() []FieldKey {
	st := f.State()
	var out []FieldKey
	for _, key := range FieldKeys {
		if key.Required() && !st.Field(key).IsValid {
			out = append(out, key)
		}
	}
	return out
}
