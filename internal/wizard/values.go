package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

// looseEqual compares form values the way a browser form would: "3" == 3,
// "true" == true, and a slice equals a value it contains.
func looseEqual(got, want any) bool {
	if want == nil {
		return got == nil || got == ""
	}
	switch x := got.(type) {
	case []any:
		for _, it := range x {
			if looseEqual(it, want) {
				return true
			}
		}
		return false
	case []string:
		for _, it := range x {
			if looseEqual(it, want) {
				return true
			}
		}
		return false
	}
	switch w := want.(type) {
	case bool:
		b, ok := toBool(got)
		return ok && b == w
	case string:
		if got == nil {
			return w == ""
		}
		if gf, ok := toFloat(got); ok {
			if wf, err := strconv.ParseFloat(w, 64); err == nil {
				return gf == wf
			}
		}
		return fmt.Sprint(got) == w
	}
	if wf, ok := toFloat(want); ok {
		gf, ok := toFloat(got)
		return ok && gf == wf
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(x), ",", "."), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "on", "1", "yes", "oui":
			return true, true
		case "false", "off", "0", "no", "non", "":
			return false, true
		}
	case nil:
		return false, true
	}
	if f, ok := toFloat(v); ok {
		return f != 0, true
	}
	return false, false
}
