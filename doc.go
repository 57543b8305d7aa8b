// Package talksy provides a real-time conversational gateway.
//
// Talksy serves chat sessions over WebSocket with streaming model
// replies, built-in tool execution, per-session rate limiting, and
// session persistence with transparent storage failover.
//
// # Quick Start
//
// Install the gateway:
//
//	go install github.com/emadnahed/talksy/cmd/talksy@latest
//
// Create a configuration:
//
//	session:
//	  ttl: 30m
//	  disconnect_grace: 30s
//	rate_limit:
//	  max_requests: 60
//	  window: 1m
//	llm:
//	  provider: "openai"
//	  model: "gpt-4o-mini"
//	  api_key: "${OPENAI_API_KEY}"
//
// Start the server:
//
//	talksy serve --config talksy.yaml
//
// # Using as a Go Library
//
// Import the packages you need:
//
//	import (
//	    "github.com/emadnahed/talksy/pkg/session"
//	    "github.com/emadnahed/talksy/pkg/tool"
//	    "github.com/emadnahed/talksy/pkg/gateway"
//	)
//
// # Architecture
//
// Clients connect over WebSocket and exchange JSON frames:
//
//	Client → Gateway → Session Manager → LLM Provider / Tool Executor
//
// Sessions survive connection drops within a grace window, history is
// bounded FIFO, and an optional Redis backend persists sessions across
// process restarts with automatic demotion to in-process storage when
// Redis is unreachable.
package talksy
