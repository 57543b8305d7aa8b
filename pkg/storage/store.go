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

// Package storage provides the session state store abstraction.
//
// Two backends exist: an in-process map and Redis. The
// FailoverCoordinator wraps both so session state survives a Redis
// outage by demoting transparently to the in-process store.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
// It is a normal negative result, never an operational failure.
var ErrNotFound = errors.New("storage: key not found")

// Store is a key/value store for session-shaped values with TTL support.
//
// Implementations must be safe for concurrent use. A zero ttl on Set means
// the backend's default expiry (or none, for the memory backend).
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A positive ttl bounds its lifetime.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Removing a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Has reports whether key exists.
	Has(ctx context.Context, key string) (bool, error)

	// Keys returns all live keys.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes all keys.
	Clear(ctx context.Context) error

	// Count returns the number of live keys.
	Count(ctx context.Context) (int64, error)

	// IsHealthy reports whether the backend is reachable.
	IsHealthy(ctx context.Context) bool

	// Close releases resources held by the store.
	Close() error
}

// IsOperational reports whether err is an operational failure, as opposed
// to a normal negative result. The failover coordinator only demotes on
// operational failures.
func IsOperational(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound)
}
