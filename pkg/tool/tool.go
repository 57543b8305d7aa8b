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

// Package tool defines the tool abstraction, its registry, parameter
// schema validation, and the executor that runs tool calls with timeout,
// concurrency, and error classification guarantees.
package tool

import (
	"context"
	"encoding/json"
	"time"
)

// ErrorCode classifies why a tool call failed.
type ErrorCode string

const (
	CodeInvalidParameters ErrorCode = "invalid_parameters"
	CodeNotFound          ErrorCode = "not_found"
	CodeTimeout           ErrorCode = "timeout"
	CodeExecutionFailed   ErrorCode = "execution_failed"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeInternalError     ErrorCode = "internal_error"
)

// PropertySchema describes one parameter. Nested objects and array items
// recurse through the same type.
type PropertySchema struct {
	Type        string                     `json:"type"`
	Description string                     `json:"description,omitempty"`
	Enum        []any                      `json:"enum,omitempty"`
	Items       *PropertySchema            `json:"items,omitempty"`
	Properties  map[string]*PropertySchema `json:"properties,omitempty"`
	Required    []string                   `json:"required,omitempty"`
}

// ParameterSchema is the object schema for a tool's parameters.
type ParameterSchema struct {
	Properties map[string]*PropertySchema `json:"properties,omitempty"`
	Required   []string                   `json:"required,omitempty"`
}

// Definition is a tool's self-description, served to clients verbatim.
// Timeout, when set, overrides the executor's default budget for this
// tool only.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category,omitempty"`
	Version     string          `json:"version,omitempty"`
	Deprecated  bool            `json:"deprecated,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty"`
	Schema      ParameterSchema `json:"schema"`
}

// Tool is a callable capability.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Call is one invocation request.
type Call struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// Result is the uniform envelope for a finished call, success or failure.
type Result struct {
	CallID        string         `json:"call_id"`
	ToolName      string         `json:"tool_name"`
	Success       bool           `json:"success"`
	Output        any            `json:"output,omitempty"`
	Error         string         `json:"error,omitempty"`
	Code          ErrorCode      `json:"code,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

func successResult(call Call, output any, elapsed time.Duration) Result {
	return Result{
		CallID:        call.ID,
		ToolName:      call.Name,
		Success:       true,
		Output:        output,
		ExecutionTime: elapsed,
		Timestamp:     time.Now().UTC(),
	}
}

func errorResult(call Call, code ErrorCode, message string) Result {
	return Result{
		CallID:    call.ID,
		ToolName:  call.Name,
		Success:   false,
		Error:     message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}
