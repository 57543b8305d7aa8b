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

package ratelimit

import "time"

// slidingWindow counts request timestamps inside a rolling window using a
// fixed circular buffer of limit+1 slots. Eviction of aged timestamps is
// lazy: it happens at the head on the next observation, so both consume
// and deny are O(1) amortized with zero steady-state allocation.
type slidingWindow struct {
	window time.Duration

	buf   []time.Time
	head  int // index of the oldest recorded timestamp
	count int // live timestamps in buf
}

func newSlidingWindow(window time.Duration, limit int) *slidingWindow {
	return &slidingWindow{
		window: window,
		buf:    make([]time.Time, limit+1),
	}
}

// evict drops timestamps that have aged out of the window ending at now.
func (w *slidingWindow) evict(now time.Time) {
	cutoff := now.Add(-w.window)
	for w.count > 0 && !w.buf[w.head].After(cutoff) {
		w.head = (w.head + 1) % len(w.buf)
		w.count--
	}
}

// record appends a timestamp. When the buffer is full the oldest entry is
// dropped; the limiter, not the buffer, is what denies admission.
func (w *slidingWindow) record(ts time.Time) {
	w.buf[(w.head+w.count)%len(w.buf)] = ts
	if w.count == len(w.buf) {
		w.head = (w.head + 1) % len(w.buf)
	} else {
		w.count++
	}
}

// oldest returns the earliest live timestamp. Only valid when count > 0.
func (w *slidingWindow) oldest() time.Time {
	return w.buf[w.head]
}

// size returns the number of live timestamps after eviction at now.
func (w *slidingWindow) size(now time.Time) int {
	w.evict(now)
	return w.count
}
