package wizard

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formgen/pkg/visibility"
	"github.com/goliatone/go-formgen/pkg/visibility/expr"
)

// Conditions use the formgen visibility grammar: == and != against string,
// number, bool or null literals, &&, ||, !, parentheses, and bare identifiers
// tested for truthiness. Dotted identifiers reach into nested values.
var conditions visibility.Evaluator = expr.New()

// CheckCondition reports a syntax error in src. Empty sources are valid.
func CheckCondition(src string) error {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	if _, err := conditions.Eval("", src, visibility.Context{}); err != nil {
		return fmt.Errorf("wizard: condition %q: %w", src, err)
	}
	return nil
}

// EvalCondition evaluates src for the element at path. An empty condition
// holds; a malformed one does not.
func EvalCondition(path, src string, values map[string]any) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	ok, err := conditions.Eval(path, src, visibility.Context{Values: values})
	return err == nil && ok
}

// when evaluates a condition of the config. Conditions rejected by prepare
// never hold; configs built in code without prepare are checked lazily.
func (c *Config) when(path, src string, values map[string]any) bool {
	if strings.TrimSpace(src) == "" {
		return true
	}
	if c.conds != nil {
		if valid, seen := c.conds[src]; seen && !valid {
			return false
		}
	}
	return EvalCondition(path, src, values)
}
