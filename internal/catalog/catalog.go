// Package catalog loads the mock product catalog that funnel pages render.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/funnel"
	"github.com/AbdelrhmanRafat/Funnel-Pages-sub000/internal/theme"
)

const defaultCurrency = "EGP"

var (
	// ErrProductNotFound is returned by Get for unknown slugs.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrInvalidCatalog wraps structural problems in the catalog file.
	ErrInvalidCatalog = errors.New("catalog: invalid catalog")
)

// Product is one sellable product with everything its funnel needs.
type Product struct {
	Slug               string                  `json:"slug"`
	Name               string                  `json:"name"`
	Theme              theme.Theme             `json:"theme"`
	Currency           string                  `json:"currency"`
	Locale             string                  `json:"locale"`
	DescriptionHTML    string                  `json:"descriptionHtml,omitempty"`
	Images             []string                `json:"images,omitempty"`
	IsVariant          bool                    `json:"isVariant"`
	SKU                funnel.SKU              `json:"sku,omitempty"`
	Price              int64                   `json:"price"`
	PriceAfterDiscount int64                   `json:"price_after_discount"`
	Stock              int                     `json:"stock"`
	OptionData         *funnel.OptionData      `json:"optionData,omitempty"`
	Offers             []funnel.BundleOffer    `json:"offers,omitempty"`
	Delivery           []funnel.DeliveryOption `json:"delivery"`
	Payment            []funnel.PaymentMethod  `json:"payment"`
}

// FunnelConfig returns the configuration of a fresh funnel for the product.
func (p Product) FunnelConfig(logger *zap.Logger) funnel.Config {
	return funnel.Config{
		ProductID:          p.Slug,
		Currency:           p.Currency,
		OptionData:         p.OptionData,
		IsVariant:          p.IsVariant,
		BaseQuantity:       p.Stock,
		SKU:                p.SKU,
		Price:              p.Price,
		PriceAfterDiscount: p.PriceAfterDiscount,
		Offers:             p.Offers,
		Delivery:           p.Delivery,
		Payment:            p.Payment,
		Logger:             logger,
	}
}

type fileProduct struct {
	Slug               string                  `yaml:"slug"`
	Name               string                  `yaml:"name"`
	Theme              string                  `yaml:"theme"`
	Currency           string                  `yaml:"currency"`
	Locale             string                  `yaml:"locale"`
	Description        string                  `yaml:"description"`
	Images             []string                `yaml:"images"`
	IsVariant          bool                    `yaml:"is_variant"`
	SKU                string                  `yaml:"sku"`
	Price              int64                   `yaml:"price"`
	PriceAfterDiscount int64                   `yaml:"price_after_discount"`
	Stock              int                     `yaml:"stock"`
	OptionData         string                  `yaml:"option_data"`
	Offers             []funnel.BundleOffer    `yaml:"offers"`
	Delivery           []funnel.DeliveryOption `yaml:"delivery"`
	Payment            []funnel.PaymentMethod  `yaml:"payment"`
}

type file struct {
	Delivery []funnel.DeliveryOption `yaml:"delivery"`
	Payment  []funnel.PaymentMethod  `yaml:"payment"`
	Products []fileProduct           `yaml:"products"`
}

// Catalog is an immutable set of products keyed by slug.
type Catalog struct {
	products map[string]Product
	order    []string
}

// Load reads and parses the catalog file at path.
func Load(path string, logger *zap.Logger) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(raw, logger)
}

// Parse builds a catalog from YAML. Products inherit the file-level delivery
// and payment lists unless they declare their own.
func Parse(raw []byte, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy := bluemonday.UGCPolicy()

	c := &Catalog{products: make(map[string]Product, len(f.Products))}
	for i, fp := range f.Products {
		slug := strings.ToLower(strings.TrimSpace(fp.Slug))
		if slug == "" {
			return nil, fmt.Errorf("%w: product %d has no slug", ErrInvalidCatalog, i)
		}
		if _, dup := c.products[slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalidCatalog, slug)
		}
		log := logger.With(zap.String("product", slug))

		p := Product{
			Slug:               slug,
			Name:               strings.TrimSpace(fp.Name),
			Currency:           strings.ToUpper(strings.TrimSpace(fp.Currency)),
			Images:             fp.Images,
			IsVariant:          fp.IsVariant,
			SKU:                funnel.SKU(strings.TrimSpace(fp.SKU)),
			Price:              fp.Price,
			PriceAfterDiscount: fp.PriceAfterDiscount,
			Stock:              fp.Stock,
			Offers:             fp.Offers,
			Delivery:           fp.Delivery,
			Payment:            fp.Payment,
		}
		if p.Currency == "" {
			p.Currency = defaultCurrency
		}

		t, ok := theme.Parse(fp.Theme)
		if !ok {
			if fp.Theme != "" {
				log.Warn("unknown theme; using default", zap.String("theme", fp.Theme))
			}
			t = theme.MustDefault()
		}
		p.Theme = t
		p.Locale = strings.ToLower(strings.TrimSpace(fp.Locale))
		if p.Locale == "" {
			p.Locale = t.DefaultLocale
		}

		if len(p.Delivery) == 0 {
			p.Delivery = f.Delivery
		}
		if len(p.Payment) == 0 {
			p.Payment = f.Payment
		}

		if strings.TrimSpace(fp.Description) != "" {
			var buf bytes.Buffer
			if err := md.Convert([]byte(fp.Description), &buf); err != nil {
				log.Warn("description markdown failed", zap.Error(err))
			} else {
				p.DescriptionHTML = policy.Sanitize(buf.String())
			}
		}

		if strings.TrimSpace(fp.OptionData) != "" {
			data, err := ParseOptionData(fp.OptionData)
			if err != nil {
				log.Error("option data unreadable; selling as non-variant", zap.Error(err))
				p.IsVariant = false
			} else {
				p.OptionData = data
			}
		}
		if p.IsVariant && p.OptionData.NumberOfOptions() == 0 {
			log.Warn("variant product without options; selling as non-variant")
			p.IsVariant = false
		}

		c.products[slug] = p
		c.order = append(c.order, slug)
	}
	return c, nil
}

// ParseOptionData decodes the JSON option catalog of a product.
func ParseOptionData(raw string) (*funnel.OptionData, error) {
	var data funnel.OptionData
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("catalog: option data: %w", err)
	}
	return &data, nil
}

// Get returns the product with slug.
func (c *Catalog) Get(slug string) (Product, error) {
	p, ok := c.products[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Product{}, fmt.Errorf("%w: %q", ErrProductNotFound, slug)
	}
	return p, nil
}

// All returns every product in file order.
func (c *Catalog) All() []Product {
	out := make([]Product, 0, len(c.order))
	for _, slug := range c.order {
		out = append(out, c.products[slug])
	}
	return out
}

// Slugs returns the product slugs sorted alphabetically.
func (c *Catalog) Slugs() []string {
	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}
