// Copyright 2026 Talksy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tool

import (
	"context"
	"fmt"
	"time"
)

// RegisterBuiltins adds the built-in tool set to the registry.
func RegisterBuiltins(reg *Registry) error {
	for _, t := range []Tool{
		&EchoTool{},
		&CurrentTimeTool{},
		&CalculatorTool{},
	} {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// EchoTool returns its input unchanged. Useful for wiring checks.
type EchoTool struct{}

func (t *EchoTool) Definition() Definition {
	return Definition{
		Name:        "echo",
		Description: "Returns the provided message unchanged",
		Category:    "utility",
		Schema: ParameterSchema{
			Properties: map[string]*PropertySchema{
				"message": {Type: "string", Description: "Text to echo back"},
			},
			Required: []string{"message"},
		},
	}
}

func (t *EchoTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	msg, _ := args["message"].(string)
	return map[string]any{"message": msg}, nil
}

// CurrentTimeTool reports the server's current time.
type CurrentTimeTool struct{}

func (t *CurrentTimeTool) Definition() Definition {
	return Definition{
		Name:        "current_time",
		Description: "Returns the current server time",
		Category:    "utility",
		Schema: ParameterSchema{
			Properties: map[string]*PropertySchema{
				"format": {
					Type:        "string",
					Description: "Output format",
					Enum:        []any{"rfc3339", "unix"},
				},
			},
		},
	}
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	now := time.Now()
	format, _ := args["format"].(string)
	switch format {
	case "unix":
		return map[string]any{"time": now.Unix()}, nil
	default:
		return map[string]any{"time": now.Format(time.RFC3339)}, nil
	}
}

// CalculatorTool evaluates a basic arithmetic operation on two operands.
type CalculatorTool struct{}

func (t *CalculatorTool) Definition() Definition {
	return Definition{
		Name:        "calculator",
		Description: "Performs basic arithmetic on two numbers",
		Category:    "utility",
		Schema: ParameterSchema{
			Properties: map[string]*PropertySchema{
				"operation": {
					Type:        "string",
					Description: "Arithmetic operation to perform",
					Enum:        []any{"add", "subtract", "multiply", "divide"},
				},
				"a": {Type: "number", Description: "Left operand"},
				"b": {Type: "number", Description: "Right operand"},
			},
			Required: []string{"operation", "a", "b"},
		},
	}
}

func (t *CalculatorTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	op, _ := args["operation"].(string)
	a, _ := args["a"].(float64)
	b, _ := args["b"].(float64)

	var result float64
	switch op {
	case "add":
		result = a + b
	case "subtract":
		result = a - b
	case "multiply":
		result = a * b
	case "divide":
		if b == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		result = a / b
	default:
		return nil, fmt.Errorf("unsupported operation %q", op)
	}
	return map[string]any{"result": result}, nil
}
