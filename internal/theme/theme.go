// Package theme lists the visual themes a funnel page can be rendered with.
package theme

import (
	"sort"
	"strings"
)

// Direction is the text direction of a theme.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
)

// Theme describes one presentation of the funnel.
type Theme struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Direction     Direction `json:"direction"`
	DefaultLocale string    `json:"defaultLocale"`
}

// Default is used when a product names no theme or an unknown one.
const Default = "classic"

var registry = map[string]Theme{}

func register(name string, dir Direction, locale string) {
	key := strings.ToLower(name)
	registry[key] = Theme{Key: key, Name: name, Direction: dir, DefaultLocale: locale}
}

func init() {
	for _, name := range []string{
		"Classic", "Bold", "Neon", "Pop", "Pro", "Urban", "Zen",
		"Elegant", "Fresh", "Retro", "Techno", "Minimal",
	} {
		register(name, LTR, "en")
	}
	register("ArabicTouch", RTL, "ar")
}

// Parse looks a theme up by name, ignoring case, spaces and dashes.
func Parse(name string) (Theme, bool) {
	key := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(name)))
	t, ok := registry[key]
	return t, ok
}

// MustDefault returns the default theme.
func MustDefault() Theme { return registry[Default] }

// All returns every theme sorted by key.
func All() []Theme {
	out := make([]Theme, 0, len(registry))
	for _, t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
