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

package stream

import "sync/atomic"

// Metrics holds the router's runtime counters. All fields are updated
// atomically; Snapshot is safe to call from any goroutine.
type Metrics struct {
	eventsIn         int64
	eventsRouted     int64
	eventsFiltered   int64
	windowsEmitted   int64
	resultsDelivered int64
}

func (m *Metrics) addIn(n int64)        { atomic.AddInt64(&m.eventsIn, n) }
func (m *Metrics) addRouted(n int64)    { atomic.AddInt64(&m.eventsRouted, n) }
func (m *Metrics) addFiltered(n int64)  { atomic.AddInt64(&m.eventsFiltered, n) }
func (m *Metrics) addEmitted(n int64)   { atomic.AddInt64(&m.windowsEmitted, n) }
func (m *Metrics) addDelivered(n int64) { atomic.AddInt64(&m.resultsDelivered, n) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"events_in":         atomic.LoadInt64(&m.eventsIn),
		"events_routed":     atomic.LoadInt64(&m.eventsRouted),
		"events_filtered":   atomic.LoadInt64(&m.eventsFiltered),
		"windows_emitted":   atomic.LoadInt64(&m.windowsEmitted),
		"results_delivered": atomic.LoadInt64(&m.resultsDelivered),
	}
}
