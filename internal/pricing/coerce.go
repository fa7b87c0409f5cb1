package pricing

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Coerce turns a loosely typed payload value into a non-negative amount.
// Anything that is not a finite, non-negative number becomes zero.
func Coerce(v any) decimal.Decimal {
	d, ok := Parse(v)
	if !ok || d.IsNegative() {
		return decimal.Zero
	}

	return d
}

// Parse reports whether v holds a finite number, accepting numeric strings
// with thousands separators and a leading currency symbol.
func Parse(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		return parseString(n.String())
	case string:
		return parseString(n)
	default:
		return decimal.Zero, false
	}
}

func parseString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "₹$€£ ")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}

	return d, true
}
