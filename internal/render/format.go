package render

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Timestamps above this are milliseconds, below are seconds.
const msThreshold = 10000000000

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"Jan 2, 2006 03:04 PM",
	"Jan 2, 03:04 PM",
	"1/2/2006, 3:04:05 PM",
}

// parseTimestamp understands epoch seconds or milliseconds and the string
// layouts the engine emits. Zone-less strings are read in loc.
func parseTimestamp(ts string, loc *time.Location) (time.Time, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, false
	}

	if v, err := strconv.ParseFloat(ts, 64); err == nil {
		if v == 0 {
			return time.Time{}, false
		}
		ms := v
		if v <= msThreshold {
			ms = v * 1000
		}
		return time.UnixMilli(int64(ms)), true
	}

	clean := strings.Replace(strings.Replace(ts, " MST", "", 1), " MDT", "", 1)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, clean, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatTime renders ts as "M/D h:mm AM". Unparseable input is returned as is.
func FormatTime(ts string, loc *time.Location) string {
	t, ok := parseTimestamp(ts, loc)
	if !ok {
		return ts
	}
	return t.In(loc).Format("1/2 3:04 PM")
}

// FormatTimeWithSeconds is FormatTime with seconds.
func FormatTimeWithSeconds(ts string, loc *time.Location) string {
	t, ok := parseTimestamp(ts, loc)
	if !ok {
		return ts
	}
	return t.In(loc).Format("1/2 3:04:05 PM")
}

// Money renders v as dollars with two decimals.
func Money(v float64) string {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return "-$" + groupThousands(d.Neg().StringFixed(2))
	}
	return "$" + groupThousands(d.StringFixed(2))
}

// Percent renders v with an explicit sign.
func Percent(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2) + "%"
	if v > 0 {
		return "+" + s
	}
	return s
}

func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
