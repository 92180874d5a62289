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

// Package types holds the shared data types that flow between the engine's
// packages: events entering the runtime, finalized window results leaving it,
// and the runtime configuration.
package types

import "time"

// Event is one record flowing through the engine. Data is a dynamic record
// owned by the producer; the engine reads it but never mutates it.
type Event struct {
	Stream    string
	Timestamp time.Time
	Data      map[string]interface{}
}

// Result is a finalized window record delivered to an output stream.
type Result map[string]interface{}

// Config is the engine runtime configuration.
type Config struct {
	// BufferSize is the per-input-stream channel capacity in async mode.
	BufferSize int
	// SyncMode processes events on the caller's goroutine instead of a
	// per-stream dispatcher. Deterministic, intended for tests and embedding.
	SyncMode bool
	// DrainOnStop flushes still-open windows on shutdown instead of
	// discarding them.
	DrainOnStop bool
	// EmitEmpty emits a result for buckets that received no events, so
	// tumbling windows cover contiguous time without gaps.
	EmitEmpty bool
	// TickInterval, when non-zero, drives a wall-clock ticker that closes
	// due windows on idle streams.
	TickInterval time.Duration
}

// DefaultConfig returns the default runtime configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize: 1024,
		EmitEmpty:  true,
	}
}
