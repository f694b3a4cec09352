package export

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatValue renders a record value the way it is displayed in every export
// format. nil renders as an empty string.
func FormatValue(v any, f ColumnFormat) string {
	if v == nil {
		return ""
	}
	switch f {
	case Currency:
		if x, ok := toFloat(v); ok {
			return FormatCurrency(x)
		}
	case Percentage:
		if x, ok := toFloat(v); ok {
			return FormatPercent(x)
		}
	case Number:
		if x, ok := toFloat(v); ok {
			return FormatNumber(x, 2)
		}
	case Date:
		if t, ok := toTime(v); ok {
			return FormatDate(t)
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			if b {
				return "Oui"
			}
			return "Non"
		}
	}
	switch x := v.(type) {
	case string:
		return x
	case time.Time:
		return FormatDate(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// FormatCurrency formats euros as "1 234,56 €".
func FormatCurrency(euros float64) string {
	return formatFixed(euros, 2) + " €"
}

// FormatPercent formats a percentage value (12.5 is 12,5 %), at most two decimals.
func FormatPercent(p float64) string {
	return FormatNumber(p, 2) + " %"
}

func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006")
}

// FormatNumber groups thousands and prints up to maxDecimals decimals,
// dropping trailing zeros.
func FormatNumber(x float64, maxDecimals int) string {
	s := formatFixed(x, maxDecimals)
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ",")
	}
	return s
}

func formatFixed(x float64, decimals int) string {
	p := math.Pow10(decimals)
	x = math.Round(x*p) / p
	neg := x < 0
	if neg {
		x = -x
	}
	raw := strconv.FormatFloat(x, 'f', decimals, 64)
	intPart, frac, _ := strings.Cut(raw, ".")

	var b strings.Builder
	if neg && strings.Trim(raw, "0.") != "" {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(c)
	}
	if frac != "" {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case *float64:
		if x == nil {
			return 0, false
		}
		return *x, true
	case *int:
		if x == nil {
			return 0, false
		}
		return float64(*x), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(x, ",", "."), 64)
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, x); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
