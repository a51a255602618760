// Package validation checks customer form values before they are stored in
// the funnel form.
package validation

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/i18n"
)

// rules holds the validator tags of every form field.
var rules = map[funnel.FieldKey]string{
	funnel.FieldFullName: "required,min=3,max=120",
	funnel.FieldPhone:    "required,phone",
	funnel.FieldEmail:    "required,email,max=254",
	funnel.FieldAddress:  "required,min=5,max=300",
	funnel.FieldCity:     "required,min=2,max=120",
	funnel.FieldNotes:    "omitempty,max=500",
}

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ()\-]{5,19}$`)

// Result is the outcome of checking one field value.
type Result struct {
	Value   string
	Valid   bool
	Message string
}

// Update converts the result into a touched form update.
func (r Result) Update() funnel.FieldUpdate {
	value, valid, msg, touched := r.Value, r.Valid, r.Message, true
	return funnel.FieldUpdate{Value: &value, IsValid: &valid, ErrorMessage: &msg, Touched: &touched}
}

// Validator checks field values and renders localised messages.
type Validator struct {
	validate *validator.Validate
	bundle   *i18n.Bundle
	strict   *bluemonday.Policy
}

// New constructs a Validator. A nil bundle leaves messages as translation keys.
func New(bundle *i18n.Bundle) *Validator {
	v := validator.New()
	if err := v.RegisterValidation("phone", validatePhone); err != nil {
		panic(fmt.Sprintf("validation: register phone rule: %v", err))
	}
	return &Validator{validate: v, bundle: bundle, strict: bluemonday.StrictPolicy()}
}

// Check validates value for key. Values are trimmed; notes are stripped of
// markup before they are checked and otherwise kept as typed.
func (v *Validator) Check(key funnel.FieldKey, value, lang string) Result {
	value = strings.TrimSpace(value)
	if key == funnel.FieldNotes {
		value = strings.TrimSpace(html.UnescapeString(v.strict.Sanitize(value)))
	}
	if key == funnel.FieldEmail {
		value = strings.ToLower(value)
	}
	tag, ok := rules[key]
	if !ok {
		return Result{Value: value, Valid: true}
	}

	err := v.validate.Var(value, tag)
	if err == nil {
		return Result{Value: value, Valid: true}
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return Result{Value: value, Message: v.translate(lang, "validation.required", key)}
	}
	fe := errs[0]
	label := v.label(lang, key)
	var msg string
	switch fe.Tag() {
	case "email":
		msg = v.t(lang, "validation.email")
	case "phone":
		msg = v.t(lang, "validation.phone")
	case "min":
		msg = v.tf(lang, "validation.min", label, fe.Param())
	case "max":
		msg = v.tf(lang, "validation.max", label, fe.Param())
	default:
		msg = v.tf(lang, "validation.required", label)
	}
	return Result{Value: value, Message: msg}
}

func (v *Validator) translate(lang, msgKey string, key funnel.FieldKey) string {
	return v.tf(lang, msgKey, v.label(lang, key))
}

func (v *Validator) label(lang string, key funnel.FieldKey) string {
	return v.t(lang, "field."+string(key))
}

func (v *Validator) t(lang, key string) string {
	if v.bundle == nil {
		return key
	}
	return v.bundle.T(lang, key)
}

func (v *Validator) tf(lang, key string, args ...any) string {
	if v.bundle == nil {
		return key
	}
	return v.bundle.Tf(lang, key, args...)
}

// validatePhone accepts an optional leading plus followed by digits, spaces,
// dashes and parentheses, with between 7 and 15 digits overall.
func validatePhone(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if !phonePattern.MatchString(value) {
		return false
	}
	digits := 0
	for _, r := range value {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}
