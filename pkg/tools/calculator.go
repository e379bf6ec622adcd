package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

const calcAllowed = "0123456789+-*/.() "

func calculate(_ context.Context, args Args) (string, error) {
	expression := args.String("expression", "")
	if expression == "" {
		return "Please provide a mathematical expression", nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(calcAllowed, r) {
			return r
		}
		return -1
	}, expression)
	if strings.TrimSpace(cleaned) == "" {
		return "Invalid mathematical expression", nil
	}

	out, err := expr.Eval(cleaned, nil)
	if err != nil {
		return "Calculation error: " + err.Error(), nil
	}

	var result string
	switch v := out.(type) {
	case int:
		result = strconv.Itoa(v)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return "Error: Division by zero", nil
		}
		result = formatFloat(v)
	default:
		result = fmt.Sprint(v)
	}
	return fmt.Sprintf("🧮 %s = %s", expression, result), nil
}

// formatFloat keeps a ".0" on whole numbers so 4/2 reads as 2.0.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
