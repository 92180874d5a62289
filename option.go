/*
 * Copyright 2025 The Windrill Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package windrill

import (
	"time"

	"github.com/windrill/windrill/logger"
	"github.com/windrill/windrill/window"
)

// Option adjusts the engine's default behavior. Options are applied in
// order at New time.
type Option func(*Windrill)

// WithLogger sets the engine's logger. Without it the engine uses the
// package default logger.
//
//	wd, _ := windrill.New(windrill.WithLogger(logger.NewDiscardLogger()))
func WithLogger(log logger.Logger) Option {
	return func(s *Windrill) {
		s.log = log
	}
}

// WithLogLevel sets the verbosity of this engine's logger. Other engines
// and the package default logger are not affected. Combines with
// WithLogger in either order.
//
//	wd, _ := windrill.New(windrill.WithLogLevel(logger.DEBUG))
func WithLogLevel(level logger.Level) Option {
	return func(s *Windrill) {
		s.logLevel = &level
	}
}

// WithSyncMode processes events on the caller's goroutine: Publish returns
// after the event has been routed and any resulting windows emitted.
// Deterministic, intended for tests and request-scoped pipelines.
func WithSyncMode() Option {
	return func(s *Windrill) {
		s.cfg.SyncMode = true
	}
}

// WithBufferSize sets the per-input-stream channel capacity used in async
// mode. Publish blocks when the buffer is full.
func WithBufferSize(size int) Option {
	return func(s *Windrill) {
		if size > 0 {
			s.cfg.BufferSize = size
		}
	}
}

// WithDrainOnStop flushes still-open windows on Stop, emitting their
// partial results. The default discards them.
func WithDrainOnStop() Option {
	return func(s *Windrill) {
		s.cfg.DrainOnStop = true
	}
}

// WithSuppressEmptyWindows skips emission for buckets that received no
// events. By default an empty bucket emits count=0 and nil value
// aggregates, so downstream sees contiguous time.
func WithSuppressEmptyWindows() Option {
	return func(s *Windrill) {
		s.cfg.EmitEmpty = false
	}
}

// WithClock sets the engine clock, used to stamp Publish calls with a zero
// timestamp and to drive WithTicker. Tests inject a window.VirtualClock.
func WithClock(clock window.Clock) Option {
	return func(s *Windrill) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTicker starts a background goroutine that ticks the engine every
// interval with the engine clock's current time, so windows on quiet
// streams still close.
func WithTicker(interval time.Duration) Option {
	return func(s *Windrill) {
		s.cfg.TickInterval = interval
	}
}
