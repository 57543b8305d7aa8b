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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emadnahed/talksy/pkg/auth"
	"github.com/emadnahed/talksy/pkg/config"
	"github.com/emadnahed/talksy/pkg/gateway"
	"github.com/emadnahed/talksy/pkg/llms"
	"github.com/emadnahed/talksy/pkg/observability"
	"github.com/emadnahed/talksy/pkg/ratelimit"
	"github.com/emadnahed/talksy/pkg/session"
	"github.com/emadnahed/talksy/pkg/storage"
	"github.com/emadnahed/talksy/pkg/tool"
)

// ServeCmd starts the gateway server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)." default:"0"`
	Watch bool `help:"Watch the config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Watch && loader != nil {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	sessions, deps, err := buildComponents(ctx, cfg)
	if err != nil {
		return err
	}

	metrics, err := observability.InitMetrics(ctx, cfg.Metrics, func() int64 {
		return int64(sessions.Count())
	})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	observability.SetGlobalMetrics(metrics)
	deps.Metrics = metrics

	srv := gateway.NewServer(*cfg, deps)

	fmt.Printf("\nTalksy gateway ready\n")
	fmt.Printf("   WebSocket:  ws://%s:%d/ws\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("   Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	if cfg.Metrics.IsEnabled() {
		fmt.Printf("   Metrics:    http://%s:%d/metrics\n", cfg.Server.Host, cfg.Server.Port)
	}
	fmt.Printf("   Tools:      http://%s:%d/v1/tools\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
		slog.Info("No config file given, using defaults")
		return cfg, nil, nil
	}
	return config.LoadFile(ctx, path)
}

func buildComponents(ctx context.Context, cfg *config.Config) (*session.Manager, gateway.Deps, error) {
	store := storage.NewCoordinator(ctx, &cfg.Storage,
		storage.WithFailoverHook(func() {
			observability.GetGlobalMetrics().RecordFailover(context.Background(), "store")
		}))

	sessions := session.NewManager(cfg.Session, session.WithStore(store))

	tools := tool.NewRegistry()
	if err := tool.RegisterBuiltins(tools); err != nil {
		return nil, gateway.Deps{}, err
	}
	executor := tool.NewExecutor(tools, cfg.Tools)

	provider, err := llms.NewProvider(cfg.LLM)
	if err != nil {
		return nil, gateway.Deps{}, fmt.Errorf("failed to build llm provider: %w", err)
	}
	slog.Info("LLM provider ready", "provider", provider.Name(), "model", cfg.LLM.Model)

	limiter := ratelimit.NewLimiter(cfg.RateLimit)

	var validator *auth.JWTValidator
	if cfg.Server.Auth != nil && cfg.Server.Auth.IsEnabled() {
		validator, err = auth.NewJWTValidator(ctx, cfg.Server.Auth)
		if err != nil {
			return nil, gateway.Deps{}, fmt.Errorf("failed to build auth validator: %w", err)
		}
		slog.Info("Authentication enabled", "issuer", cfg.Server.Auth.Issuer)
	}

	return sessions, gateway.Deps{
		Sessions:  sessions,
		Executor:  executor,
		Tools:     tools,
		Provider:  provider,
		Limiter:   limiter,
		Store:     store,
		Validator: validator,
	}, nil
}
