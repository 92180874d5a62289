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

// Package window implements event-time tumbling windows. A window
// definition with interval I partitions time into half-open buckets
// [k*I, (k+1)*I); every event belongs to exactly one bucket, buckets close
// in increasing order and never overlap. Time advances through event
// timestamps or an explicit tick, never through implicit waiting.
package window

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/windrill/windrill/aggregator"
	"github.com/windrill/windrill/logger"
)

// EmitFunc receives the finalized result of one closed bucket. Calls arrive
// in strictly increasing bucket order for one Tumbling instance.
type EmitFunc func(result map[string]interface{}, start, end time.Time)

// Config describes one tumbling window manager.
type Config struct {
	// Name of the window definition, used in logs.
	Name string
	// Interval is the bucket width. Must be positive.
	Interval time.Duration
	// EmitEmpty emits results for buckets that received no events, so
	// contiguous time has no gaps. Such results carry count=0 and the
	// empty policy value (nil) for the value aggregates.
	EmitEmpty bool
	// Logger used for per-event degradations. Defaults to the package
	// default logger.
	Logger logger.Logger
}

// instance is one open bucket: accumulator state plus its bounds.
// Lifecycle: created lazily on the first event of the bucket (Open),
// closed and evicted when time passes its end boundary (Closing->Emitted).
type instance struct {
	bucket int64
	start  time.Time
	end    time.Time
	accs   *aggregator.Instance
}

// Tumbling assigns events to tumbling window instances and closes them as
// time advances. All mutation happens under a single lock; the router
// delivers one stream from one goroutine, ticks may come from another.
type Tumbling struct {
	cfg  Config
	set  *aggregator.Set
	emit EmitFunc
	log  logger.Logger

	mu sync.Mutex
	// open buckets by index; tumbling semantics keep at most one open
	// bucket outside of catch-up transitions.
	open      map[int64]*instance
	maxClosed int64
	primed    bool

	lateCount    int64
	coerceErrors int64
}

// NewTumbling creates a tumbling window manager feeding the given
// accumulator set and emitting finalized results through emit.
func NewTumbling(cfg Config, set *aggregator.Set, emit EmitFunc) *Tumbling {
	log := cfg.Logger
	if log == nil {
		log = logger.GetDefault()
	}
	return &Tumbling{
		cfg:  cfg,
		set:  set,
		emit: emit,
		log:  log,
		open: make(map[int64]*instance),
	}
}

// Add assigns one event to its bucket and feeds the bucket's accumulators.
// Any still-open bucket strictly before the event's bucket is closed and
// emitted first, in increasing order. An event mapping to an already closed
// bucket is late: dropped and counted.
func (w *Tumbling) Add(ts time.Time, data map[string]interface{}) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bucket := floorDiv(ts.UnixNano(), int64(w.cfg.Interval))
	if !w.primed {
		w.maxClosed = bucket - 1
		w.primed = true
	}
	if bucket <= w.maxClosed {
		atomic.AddInt64(&w.lateCount, 1)
		w.log.Debug("window %s: late event at %s for closed bucket %d dropped",
			w.cfg.Name, ts.Format(time.RFC3339Nano), bucket)
		return
	}

	// Close everything the new event's timestamp has moved past.
	w.closeThrough(bucket - 1)

	inst := w.open[bucket]
	if inst == nil {
		inst = w.newInstance(bucket)
		w.open[bucket] = inst
	}
	inst.accs.Update(data, w.onCoerceError)
}

// Tick closes every bucket whose end boundary lies at or before now. A tick
// before the first event is a no-op: there is no baseline bucket yet.
func (w *Tumbling) Tick(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.primed {
		return
	}
	// Bucket k has end (k+1)*I; it is due when (k+1)*I <= now.
	w.closeThrough(floorDiv(now.UnixNano(), int64(w.cfg.Interval)) - 1)
}

// Flush closes and emits all open buckets regardless of their end boundary.
// Used by drain-on-shutdown.
func (w *Tumbling) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for bucket := range w.open {
		if bucket > w.maxClosed {
			w.closeThrough(bucket)
		}
	}
}

// Discard drops all open buckets without emitting. Used by abrupt shutdown.
func (w *Tumbling) Discard() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for bucket := range w.open {
		delete(w.open, bucket)
	}
}

// LateCount returns the number of late events dropped so far.
func (w *Tumbling) LateCount() int64 {
	return atomic.LoadInt64(&w.lateCount)
}

// CoercionErrors returns the number of per-aggregate coercion failures.
func (w *Tumbling) CoercionErrors() int64 {
	return atomic.LoadInt64(&w.coerceErrors)
}

// closeThrough closes buckets maxClosed+1 .. target in order, emitting each
// one. Buckets that never saw an event emit the empty-window result when
// EmitEmpty is set, and are skipped silently otherwise. Caller holds mu.
func (w *Tumbling) closeThrough(target int64) {
	for w.maxClosed < target {
		bucket := w.maxClosed + 1
		inst := w.open[bucket]
		switch {
		case inst != nil:
			delete(w.open, bucket)
		case w.cfg.EmitEmpty:
			inst = w.newInstance(bucket)
		default:
			w.maxClosed = bucket
			continue
		}
		w.maxClosed = bucket
		w.emit(inst.accs.Finalize(), inst.start, inst.end)
	}
}

func (w *Tumbling) newInstance(bucket int64) *instance {
	startNanos := bucket * int64(w.cfg.Interval)
	return &instance{
		bucket: bucket,
		start:  time.Unix(0, startNanos),
		end:    time.Unix(0, startNanos+int64(w.cfg.Interval)),
		accs:   w.set.NewInstance(),
	}
}

func (w *Tumbling) onCoerceError(key, path string, err error) {
	atomic.AddInt64(&w.coerceErrors, 1)
	w.log.Debug("window %s: aggregate %q skipped event: %v", w.cfg.Name, key, err)
}

// floorDiv divides rounding toward negative infinity, so buckets are
// correct for timestamps before the epoch too.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
