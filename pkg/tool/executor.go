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
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/emadnahed/talksy/pkg/config"
)

// EventType identifies a lifecycle notification.
type EventType string

const (
	EventStarted   EventType = "tool_started"
	EventCompleted EventType = "tool_completed"
	EventFailed    EventType = "tool_failed"
)

// Event is a lifecycle notification emitted around each execution.
type Event struct {
	Type      EventType `json:"type"`
	CallID    string    `json:"call_id"`
	ToolName  string    `json:"tool_name"`
	SessionID string    `json:"session_id,omitempty"`
	Code      ErrorCode `json:"code,omitempty"`
}

// Executor runs tool calls with schema validation, a per-session
// concurrency ceiling, and a hard timeout per call.
type Executor struct {
	registry *Registry
	cfg      config.ToolsConfig
	notify   func(Event)

	mu       sync.Mutex
	inFlight map[string]int
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithNotifier registers a callback for lifecycle events. The callback
// runs synchronously on the executing goroutine; keep it cheap.
func WithNotifier(fn func(Event)) ExecutorOption {
	return func(e *Executor) {
		e.notify = fn
	}
}

func NewExecutor(reg *Registry, cfg config.ToolsConfig, opts ...ExecutorOption) *Executor {
	cfg.SetDefaults()
	e := &Executor{
		registry: reg,
		cfg:      cfg,
		inFlight: make(map[string]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one call end to end and always returns a Result; failures
// are classified, never returned as bare errors.
func (e *Executor) Execute(ctx context.Context, call Call) Result {
	if call.ID == "" {
		call.ID = uuid.NewString()
	}

	if !e.acquireSlot(call.SessionID) {
		res := errorResult(call, CodeRateLimited,
			fmt.Sprintf("session has %d tool executions in flight, limit reached", e.cfg.MaxConcurrentPerSession))
		e.emit(EventFailed, call, res.Code)
		return res
	}
	defer e.releaseSlot(call.SessionID)

	if max := e.cfg.MaxParameterBytes; max > 0 && len(call.Parameters) > max {
		res := errorResult(call, CodeInvalidParameters,
			fmt.Sprintf("parameters exceed %d bytes", max))
		e.emit(EventFailed, call, res.Code)
		return res
	}

	t, exists := e.registry.Get(call.Name)
	if !exists {
		res := errorResult(call, CodeNotFound, fmt.Sprintf("unknown tool %q", call.Name))
		e.emit(EventFailed, call, res.Code)
		return res
	}

	args := map[string]any{}
	if len(call.Parameters) > 0 {
		if err := json.Unmarshal(call.Parameters, &args); err != nil {
			res := errorResult(call, CodeInvalidParameters, fmt.Sprintf("parameters are not a JSON object: %v", err))
			e.emit(EventFailed, call, res.Code)
			return res
		}
	}
	if err := ValidateParams(t.Definition().Schema, args); err != nil {
		res := errorResult(call, CodeInvalidParameters, err.Error())
		e.emit(EventFailed, call, res.Code)
		return res
	}

	e.emit(EventStarted, call, "")
	res := e.run(ctx, t, call, args)
	if res.Success {
		e.emit(EventCompleted, call, "")
	} else {
		e.emit(EventFailed, call, res.Code)
	}
	return res
}

type execOutcome struct {
	output any
	err    error
}

// run races the tool against its timeout. Cancellation is best effort: a
// tool that ignores its context keeps its goroutine until it returns, and
// the buffered channel lets that late result be discarded without leaking.
func (e *Executor) run(ctx context.Context, t Tool, call Call, args map[string]any) Result {
	start := time.Now()

	budget := e.cfg.DefaultTimeout
	if declared := t.Definition().Timeout; declared > 0 {
		budget = declared
	}
	execCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	done := make(chan execOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Tool panicked", "tool", call.Name, "call", call.ID, "panic", r)
				done <- execOutcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		output, err := t.Execute(execCtx, args)
		done <- execOutcome{output: output, err: err}
	}()

	select {
	case outcome := <-done:
		elapsed := time.Since(start)
		if outcome.err != nil {
			res := errorResult(call, CodeExecutionFailed, outcome.err.Error())
			res.ExecutionTime = elapsed
			return res
		}
		return successResult(call, outcome.output, elapsed)
	case <-execCtx.Done():
		elapsed := time.Since(start)
		code := CodeTimeout
		msg := fmt.Sprintf("tool %q exceeded %s", call.Name, budget)
		if ctx.Err() != nil {
			// Caller went away before the deadline.
			msg = fmt.Sprintf("tool %q cancelled: %v", call.Name, ctx.Err())
		}
		res := errorResult(call, code, msg)
		res.ExecutionTime = elapsed
		return res
	}
}

// ExecuteMany runs calls concurrently, preserving input order in results.
// Per-session concurrency limits still apply to each call individually.
func (e *Executor) ExecuteMany(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.Execute(gctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// InFlight returns the number of executions currently running for a session.
func (e *Executor) InFlight(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[sessionID]
}

func (e *Executor) acquireSlot(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[sessionID] >= e.cfg.MaxConcurrentPerSession {
		return false
	}
	e.inFlight[sessionID]++
	return true
}

func (e *Executor) releaseSlot(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[sessionID] <= 1 {
		delete(e.inFlight, sessionID)
	} else {
		e.inFlight[sessionID]--
	}
}

func (e *Executor) emit(typ EventType, call Call, code ErrorCode) {
	if e.notify == nil {
		return
	}
	e.notify(Event{
		Type:      typ,
		CallID:    call.ID,
		ToolName:  call.Name,
		SessionID: call.SessionID,
		Code:      code,
	})
}
