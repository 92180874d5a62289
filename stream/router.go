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

// Package stream routes events from named input streams into bound plans
// and delivers finalized window results to named output streams. Events on
// one input stream are processed in arrival order by a single goroutine,
// which makes that goroutine the single writer for every plan reading the
// stream.
package stream

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr"
	"github.com/panjf2000/ants/v2"

	"github.com/windrill/windrill/aggregator"
	"github.com/windrill/windrill/logger"
	"github.com/windrill/windrill/planner"
	"github.com/windrill/windrill/types"
	"github.com/windrill/windrill/window"
)

// Sink receives finalized result records of one output stream.
type Sink func(result map[string]interface{})

const sinkPoolSize = 8

// planRuntime is one registered plan with its live window managers.
type planRuntime struct {
	plan    *planner.Plan
	windows []*window.Tumbling
}

// input is one named input stream: its bound plans and, in async mode, its
// ordered delivery channel.
type input struct {
	name     string
	runtimes []*planRuntime
	ch       chan types.Event
}

// Router owns the runtime of a compiled query: per-stream dispatch, window
// managers and sink delivery.
type Router struct {
	cfg  types.Config
	log  logger.Logger
	pool *ants.Pool

	mu       sync.RWMutex
	inputs   map[string]*input
	sinks    map[string][]Sink
	runtimes []*planRuntime

	metrics Metrics
	wg      sync.WaitGroup
	done    chan struct{}
	stopped int32
}

// NewRouter creates a router with the given runtime configuration.
func NewRouter(cfg types.Config, log logger.Logger) (*Router, error) {
	if log == nil {
		log = logger.GetDefault()
	}
	r := &Router{
		cfg:    cfg,
		log:    log,
		inputs: make(map[string]*input),
		sinks:  make(map[string][]Sink),
		done:   make(chan struct{}),
	}
	if !cfg.SyncMode {
		pool, err := ants.NewPool(sinkPoolSize)
		if err != nil {
			return nil, err
		}
		r.pool = pool
	}
	return r, nil
}

// Register wires one bound plan into the router: an accumulator set shared
// by all window instances, one window manager per referenced definition,
// and a sink handle on the plan's output stream.
func (r *Router) Register(plan *planner.Plan) error {
	set, err := aggregator.NewSet(plan.Fields)
	if err != nil {
		return err
	}

	rt := &planRuntime{plan: plan}
	for _, def := range plan.Windows {
		into := plan.Into
		rt.windows = append(rt.windows, window.NewTumbling(window.Config{
			Name:      def.Name,
			Interval:  def.Interval,
			EmitEmpty: r.cfg.EmitEmpty,
			Logger:    r.log,
		}, set, func(result map[string]interface{}, start, end time.Time) {
			r.deliver(into, result)
		}))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	in := r.inputLocked(plan.Source)
	in.runtimes = append(in.runtimes, rt)
	r.runtimes = append(r.runtimes, rt)
	r.log.Info("registered plan: %s%v -> %s", plan.Source, windowNames(plan), plan.Into)
	return nil
}

func windowNames(plan *planner.Plan) []string {
	names := make([]string, 0, len(plan.Windows))
	for _, def := range plan.Windows {
		names = append(names, def.Name)
	}
	return names
}

// Publish delivers one event to every plan reading the stream, preserving
// arrival order per stream. Unknown stream names are created on first
// write. In async mode Publish blocks when the stream's buffer is full
// rather than dropping the event.
func (r *Router) Publish(name string, data map[string]interface{}, ts time.Time) {
	if atomic.LoadInt32(&r.stopped) != 0 {
		return
	}
	r.metrics.addIn(1)

	r.mu.Lock()
	in := r.inputLocked(name)
	r.mu.Unlock()

	ev := types.Event{Stream: name, Timestamp: ts, Data: data}
	if r.cfg.SyncMode {
		r.route(in, ev)
		return
	}
	// The input channel is never closed; shutdown is signalled through
	// done, so a send blocked on a full buffer cannot panic when Stop
	// runs concurrently.
	select {
	case in.ch <- ev:
	case <-r.done:
	}
}

// Subscribe attaches a sink to an output stream, creating the stream on
// first use. Sinks of one result run concurrently; successive results of
// one window definition arrive in bucket order.
func (r *Router) Subscribe(name string, sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[name] = append(r.sinks[name], sink)
}

// Tick advances time on every registered window, closing due buckets.
func (r *Router) Tick(now time.Time) {
	r.mu.RLock()
	runtimes := r.runtimes
	r.mu.RUnlock()
	for _, rt := range runtimes {
		for _, w := range rt.windows {
			w.Tick(now)
		}
	}
}

// Stats returns the router's runtime counters, including the window
// managers' late-event and coercion counters.
func (r *Router) Stats() map[string]int64 {
	stats := r.metrics.Snapshot()

	r.mu.RLock()
	defer r.mu.RUnlock()
	var late, coerce int64
	for _, rt := range r.runtimes {
		for _, w := range rt.windows {
			late += w.LateCount()
			coerce += w.CoercionErrors()
		}
	}
	stats["late_dropped"] = late
	stats["coercion_errors"] = coerce
	return stats
}

// Stop shuts the router down: dispatchers drain their queues, then open
// windows are flushed (DrainOnStop) or discarded, then the sink pool is
// released. Stop is idempotent and safe against concurrent publishers.
func (r *Router) Stop() {
	if !atomic.CompareAndSwapInt32(&r.stopped, 0, 1) {
		return
	}
	close(r.done)

	// Barrier: a publisher inside inputLocked either finished its wg.Add
	// before we take the lock, or observes stopped and spawns no
	// dispatcher at all.
	r.mu.Lock()
	r.mu.Unlock()
	r.wg.Wait()

	r.mu.RLock()
	runtimes := r.runtimes
	r.mu.RUnlock()
	for _, rt := range runtimes {
		for _, w := range rt.windows {
			if r.cfg.DrainOnStop {
				w.Flush()
			} else {
				w.Discard()
			}
		}
	}

	if r.pool != nil {
		r.pool.Release()
	}
}

// inputLocked returns the stream's input, creating it (and its dispatcher,
// in async mode) on first use. After Stop no dispatcher is spawned; the
// input's nil channel makes publishes fall through to the done case.
// Caller holds mu.
func (r *Router) inputLocked(name string) *input {
	in, ok := r.inputs[name]
	if ok {
		return in
	}
	in = &input{name: name}
	if !r.cfg.SyncMode && atomic.LoadInt32(&r.stopped) == 0 {
		in.ch = make(chan types.Event, r.cfg.BufferSize)
		r.wg.Add(1)
		go r.dispatch(in)
	}
	r.inputs[name] = in
	return in
}

// dispatch is the single writer for one input stream. On shutdown it
// drains whatever the buffer still holds, then exits.
func (r *Router) dispatch(in *input) {
	defer r.wg.Done()
	for {
		select {
		case ev := <-in.ch:
			r.route(in, ev)
		case <-r.done:
			for {
				select {
				case ev := <-in.ch:
					r.route(in, ev)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(in *input, ev types.Event) {
	r.mu.RLock()
	runtimes := in.runtimes
	r.mu.RUnlock()

	for _, rt := range runtimes {
		if rt.plan.Guard != nil && !r.matches(rt.plan, ev) {
			r.metrics.addFiltered(1)
			continue
		}
		for _, w := range rt.windows {
			w.Add(ev.Timestamp, ev.Data)
		}
	}
	r.metrics.addRouted(1)
}

// matches evaluates the plan's guard against the event. Evaluation errors
// degrade to no-match; a dynamic record can always lack the guarded field.
func (r *Router) matches(plan *planner.Plan, ev types.Event) bool {
	out, err := expr.Run(plan.Guard, map[string]interface{}{"event": ev.Data})
	if err != nil {
		r.log.Debug("guard %q: %v", plan.GuardText, err)
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

// deliver fans one result out to the output stream's sinks. The calling
// window manager blocks until every sink finished, so results of one
// definition are observed in emission order.
func (r *Router) deliver(name string, result map[string]interface{}) {
	r.metrics.addEmitted(1)

	r.mu.RLock()
	sinks := r.sinks[name]
	r.mu.RUnlock()
	if len(sinks) == 0 {
		return
	}

	if r.pool == nil {
		for _, sink := range sinks {
			sink(result)
		}
		r.metrics.addDelivered(int64(len(sinks)))
		return
	}

	var wg sync.WaitGroup
	for _, sink := range sinks {
		sink := sink
		wg.Add(1)
		if err := r.pool.Submit(func() {
			defer wg.Done()
			sink(result)
		}); err != nil {
			// Pool exhausted or released; deliver inline.
			wg.Done()
			sink(result)
		}
	}
	wg.Wait()
	r.metrics.addDelivered(int64(len(sinks)))
}
