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
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/windrill/windrill/logger"
	"github.com/windrill/windrill/planner"
	"github.com/windrill/windrill/stream"
	"github.com/windrill/windrill/types"
	"github.com/windrill/windrill/window"
	"github.com/windrill/windrill/wql"
)

// Windrill is the engine: it compiles window query statements into bound
// plans and runs them against published events. Every instance is
// independent; nothing is registered process-wide.
//
// Usage:
//
//	wd := windrill.New()
//	err := wd.Load(`
//	    define tumbling window ` + "`15secs`" + ` with
//	        interval = datetime::with_seconds(15)
//	    end;
//	    select { "count": aggr::stats::count() } from in[` + "`15secs`" + `] into out;
//	`)
//	wd.Subscribe("out", func(result map[string]interface{}) { ... })
//	wd.Publish("in", map[string]interface{}{"value": 1.5}, time.Now())
type Windrill struct {
	cfg      types.Config
	log      logger.Logger
	logLevel *logger.Level
	clock    window.Clock
	router   *stream.Router
	binder   *planner.Binder

	tickStop chan struct{}
	tickDone chan struct{}
	stopped  int32
}

// New creates an engine instance. Behavior is adjusted through functional
// options; the zero-option engine runs asynchronously with buffered input
// streams, emits empty windows and discards open windows on Stop.
func New(options ...Option) (*Windrill, error) {
	s := &Windrill{
		cfg:    types.DefaultConfig(),
		clock:  window.SystemClock(),
		binder: planner.NewBinder(),
	}
	for _, option := range options {
		option(s)
	}
	switch {
	case s.log == nil && s.logLevel != nil:
		// A level without a logger gets this engine its own instance;
		// the shared default stays untouched.
		s.log = logger.NewLogger(*s.logLevel, os.Stdout)
	case s.log == nil:
		s.log = logger.GetDefault()
	case s.logLevel != nil:
		s.log.SetLevel(*s.logLevel)
	}

	router, err := stream.NewRouter(s.cfg, s.log)
	if err != nil {
		return nil, errors.Wrap(err, "windrill: create router")
	}
	s.router = router

	if s.cfg.TickInterval > 0 {
		s.tickStop = make(chan struct{})
		s.tickDone = make(chan struct{})
		go s.runTicker(s.cfg.TickInterval)
	}
	return s, nil
}

// Load parses and binds source, registering every well-formed statement
// with the engine. Loading is additive: window definitions and queries from
// earlier calls stay active.
//
// Binding is per statement: statements that bind successfully are
// registered even when others fail, and the failures come back joined into
// one error. A caller that wants all-or-nothing semantics checks the error
// before publishing.
func (s *Windrill) Load(source string) error {
	statements, err := wql.Parse(source)
	if err != nil {
		return errors.Wrap(err, "windrill: parse")
	}

	plans, bindErr := s.binder.Bind(statements)
	for _, plan := range plans {
		if err := s.router.Register(plan); err != nil {
			return errors.Wrapf(err, "windrill: register %s -> %s", plan.Source, plan.Into)
		}
	}
	if bindErr != nil {
		return errors.Wrap(bindErr, "windrill: bind")
	}
	return nil
}

// Publish delivers one event with an explicit event timestamp to the named
// input stream. A zero ts is filled in from the engine clock. Events on a
// stream no query reads from are counted and dropped.
func (s *Windrill) Publish(streamName string, data map[string]interface{}, ts time.Time) {
	if ts.IsZero() {
		ts = s.clock.Now()
	}
	s.router.Publish(streamName, data, ts)
}

// Subscribe attaches a sink to the named output stream. A stream may have
// any number of sinks; each finalized window result is delivered to all of
// them.
func (s *Windrill) Subscribe(streamName string, sink stream.Sink) {
	s.router.Subscribe(streamName, sink)
}

// Tick advances event time to now, closing every window whose end boundary
// has passed. Quiet streams need ticks (or WithTicker) to make progress;
// busy streams close windows through their own events.
func (s *Windrill) Tick(now time.Time) {
	s.router.Tick(now)
}

// Stats returns the engine's runtime counters: events_in, events_routed,
// events_filtered, windows_emitted, results_delivered, late_dropped and
// coercion_errors.
func (s *Windrill) Stats() map[string]int64 {
	return s.router.Stats()
}

// Stop shuts the engine down. Queued events are drained first; open
// windows are then flushed (WithDrainOnStop) or discarded. Stop is
// idempotent and safe to call concurrently.
func (s *Windrill) Stop() {
	if !atomic.CompareAndSwapInt32(&s.stopped, 0, 1) {
		return
	}
	if s.tickStop != nil {
		close(s.tickStop)
		<-s.tickDone
	}
	s.router.Stop()
}

// runTicker drives periodic ticks from the engine clock until Stop.
func (s *Windrill) runTicker(interval time.Duration) {
	defer close(s.tickDone)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.router.Tick(s.clock.Now())
		case <-s.tickStop:
			return
		}
	}
}
