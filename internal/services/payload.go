package service

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/pricing"
	"github.com/shopspring/decimal"
)

// firstValue returns the first non-nil value stored under any of keys.
func firstValue(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return v
		}
	}

	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := stringOf(m[key]); s != "" {
			return s
		}
	}

	return ""
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return ""
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	default:
		return ""
	}
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case models.RawLine:
		return m, true
	default:
		return nil, false
	}
}

func coerceInt(v any, fallback int) int {
	d, ok := pricing.Parse(v)
	if !ok {
		return fallback
	}

	return int(d.IntPart())
}

func coerceBool(v any, fallback bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n":
			return false
		}
	case float64:
		return b != 0
	case int:
		return b != 0
	case json.Number:
		return b.String() != "0"
	}

	return fallback
}

// sizeCatalog is the normalised form of whatever sizing structure a product carries.
type sizeCatalog struct {
	sizes  []string
	prices map[string]decimal.Decimal
}

func (c *sizeCatalog) add(label string, price any) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if _, exists := c.prices[label]; !exists {
		if _, listed := indexOf(c.sizes, label); !listed {
			c.sizes = append(c.sizes, label)
		}
	}
	if p, ok := pricing.Parse(price); ok && p.IsPositive() {
		c.prices[label] = p
	}
}

func indexOf(values []string, v string) (int, bool) {
	for i, candidate := range values {
		if candidate == v {
			return i, true
		}
	}

	return -1, false
}

// resolveSizes accepts a string array, a comma separated string, an array of
// size records, or a size-catalog object keyed by size label.
func resolveSizes(product map[string]any) sizeCatalog {
	catalog := sizeCatalog{sizes: []string{}, prices: map[string]decimal.Decimal{}}

	switch sizes := firstValue(product, "sizes", "available_sizes", "size_options").(type) {
	case []string:
		for _, s := range sizes {
			catalog.add(s, nil)
		}
	case string:
		for _, s := range strings.Split(sizes, ",") {
			catalog.add(s, nil)
		}
	case []any:
		addSizeRecords(&catalog, sizes)
	}

	switch records := firstValue(product, "size_catalog", "size_chart", "size_prices").(type) {
	case map[string]any:
		labels := make([]string, 0, len(records))
		for label := range records {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		for _, label := range labels {
			if entry, ok := asMap(records[label]); ok {
				catalog.add(label, firstValue(entry, "price", "size_price"))
			} else {
				catalog.add(label, records[label])
			}
		}
	case []any:
		addSizeRecords(&catalog, records)
	}

	return catalog
}

func addSizeRecords(catalog *sizeCatalog, records []any) {
	for _, record := range records {
		if entry, ok := asMap(record); ok {
			catalog.add(firstString(entry, "size", "name", "label", "value"), firstValue(entry, "price", "size_price"))
			continue
		}
		catalog.add(stringOf(record), nil)
	}
}

func resolveImage(product map[string]any) string {
	if image := firstString(product, "image", "thumbnail", "image_url"); image != "" {
		return image
	}

	if images, ok := product["images"].([]any); ok && len(images) > 0 {
		if entry, ok := asMap(images[0]); ok {
			return firstString(entry, "url", "src")
		}
		return stringOf(images[0])
	}

	if images, ok := product["images"].([]string); ok && len(images) > 0 {
		return strings.TrimSpace(images[0])
	}

	return ""
}
