package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// msTimestampThreshold numeric timestamps above it are treated as milliseconds.
const msTimestampThreshold = 10000000000000

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// ToNumber coerces a loosely typed JSON value into a float.
// Strings are parsed up to the first non-numeric character; anything else is 0.
func ToNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return 0
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		return parseNumericString(t.String())
	case string:
		return parseNumericString(t)
	default:
		return 0
	}
}

func parseNumericString(s string) float64 {
	match := numericPrefix.FindStringSubmatch(strings.TrimSpace(s))
	if match == nil {
		return 0
	}
	mantissa := strings.TrimSuffix(match[1], ".")
	if strings.HasPrefix(match[0], "-") {
		mantissa = "-" + mantissa
	}
	d, err := decimal.NewFromString(mantissa + match[3])
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// NormalizeTimestampToSeconds converts millisecond epochs above the threshold to seconds.
func NormalizeTimestampToSeconds(v any) float64 {
	n := ToNumber(v)
	if n > msTimestampThreshold {
		return math.Floor(n / 1000)
	}
	return n
}

func toInt(v any) int {
	return int(ToNumber(v))
}

// toString mirrors how the engine's values are displayed: strings verbatim,
// numbers in shortest form, nested values as JSON.
func toString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func stringOr(v any, fallback string) string {
	if v == nil {
		return fallback
	}
	return toString(v)
}

func timestampString(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case float64, int, int64, json.Number:
		return strconv.FormatFloat(NormalizeTimestampToSeconds(v), 'f', -1, 64)
	default:
		return toString(v)
	}
}
