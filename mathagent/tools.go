package mathagent

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/plexusone/agentcore-runtime/bedrock"
)

// toolFunc executes one tool call and returns the result as text.
type toolFunc func(args map[string]any) (string, error)

func numberSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func operands(args map[string]any) (float64, float64, error) {
	a, err := toFloat(args["a"])
	if err != nil {
		return 0, 0, fmt.Errorf("argument a: %w", err)
	}
	b, err := toFloat(args["b"])
	if err != nil {
		return 0, 0, fmt.Errorf("argument b: %w", err)
	}
	return a, b, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// mathTools returns the tool specs advertised to the model and the matching
// executors.
func mathTools() ([]bedrock.ToolSpec, map[string]toolFunc) {
	specs := []bedrock.ToolSpec{
		{Name: "add_numbers", Description: "Add two numbers together.", Schema: numberSchema()},
		{Name: "subtract_numbers", Description: "Subtract b from a.", Schema: numberSchema()},
		{Name: "multiply_numbers", Description: "Multiply two numbers together.", Schema: numberSchema()},
		{Name: "divide_numbers", Description: "Divide a by b. b must not be zero.", Schema: numberSchema()},
	}

	funcs := map[string]toolFunc{
		"add_numbers": func(args map[string]any) (string, error) {
			a, b, err := operands(args)
			if err != nil {
				return "", err
			}
			return formatNumber(a + b), nil
		},
		"subtract_numbers": func(args map[string]any) (string, error) {
			a, b, err := operands(args)
			if err != nil {
				return "", err
			}
			return formatNumber(a - b), nil
		},
		"multiply_numbers": func(args map[string]any) (string, error) {
			a, b, err := operands(args)
			if err != nil {
				return "", err
			}
			return formatNumber(a * b), nil
		},
		"divide_numbers": func(args map[string]any) (string, error) {
			a, b, err := operands(args)
			if err != nil {
				return "", err
			}
			if b == 0 {
				return "", fmt.Errorf("cannot divide by zero")
			}
			return formatNumber(a / b), nil
		},
	}
	return specs, funcs
}
