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
	"fmt"
	"math"
	"reflect"
)

// ValidateParams checks decoded JSON parameters against a tool's schema.
// Validation stops at the first violation. Unknown keys are rejected,
// explicit nulls are accepted for any declared property, and numeric
// checks follow JSON semantics (all numbers decode to float64).
func ValidateParams(schema ParameterSchema, params map[string]any) error {
	return validateObject("", schema.Properties, schema.Required, params)
}

func validateObject(path string, props map[string]*PropertySchema, required []string, value map[string]any) error {
	for _, name := range required {
		if _, present := value[name]; !present {
			return fmt.Errorf("missing required parameter %q", joinPath(path, name))
		}
	}

	for name, v := range value {
		prop, declared := props[name]
		if !declared {
			return fmt.Errorf("unknown parameter %q", joinPath(path, name))
		}
		if v == nil {
			// Explicit null is accepted for any declared property.
			continue
		}
		if err := validateValue(joinPath(path, name), prop, v); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, prop *PropertySchema, value any) error {
	switch prop.Type {
	case "string":
		if _, ok := value.(string); !ok {
			return typeError(path, "string", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return typeError(path, "boolean", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return typeError(path, "number", value)
		}
	case "integer":
		f, ok := value.(float64)
		if !ok {
			return typeError(path, "integer", value)
		}
		if f != math.Trunc(f) {
			return fmt.Errorf("parameter %q must be an integer, got %v", path, f)
		}
	case "array":
		items, ok := value.([]any)
		if !ok {
			return typeError(path, "array", value)
		}
		if prop.Items != nil {
			for i, item := range items {
				if item == nil {
					continue
				}
				if err := validateValue(fmt.Sprintf("%s[%d]", path, i), prop.Items, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return typeError(path, "object", value)
		}
		if err := validateObject(path, prop.Properties, prop.Required, obj); err != nil {
			return err
		}
	case "":
		// Untyped property accepts anything.
	default:
		return fmt.Errorf("parameter %q has unsupported schema type %q", path, prop.Type)
	}

	if len(prop.Enum) > 0 {
		for _, allowed := range prop.Enum {
			if reflect.DeepEqual(value, allowed) {
				return nil
			}
		}
		return fmt.Errorf("parameter %q value %v is not one of the allowed values", path, value)
	}
	return nil
}

func typeError(path, want string, got any) error {
	return fmt.Errorf("parameter %q must be a %s, got %T", path, want, got)
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
