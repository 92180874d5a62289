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

/*
Package windrill is a lightweight in-memory streaming aggregation engine
driven by a small window query language.

A script defines named tumbling windows and queries that read events from
input streams, aggregate them per window, and write result records to
output streams:

	define tumbling window `15secs` with
	    interval = datetime::with_seconds(15)
	end;

	select {
	    "count": aggr::stats::count(),
	    "mean":  aggr::stats::mean(event.value)
	} from in[`15secs`] where event.kind == "sensor" into out;

Time is event time: windows open and close as event timestamps (or
explicit ticks) move past their boundaries, never by wall-clock waiting.
Buckets are half-open [start, end), close in increasing order, and a
bucket that saw no events still emits count=0 with nil value aggregates
unless suppressed. Events older than the newest closed bucket are dropped
and counted, never merged into emitted results.

Basic usage:

	wd, err := windrill.New()
	if err != nil {
	    ...
	}
	defer wd.Stop()

	if err := wd.Load(script); err != nil {
	    ...
	}
	wd.Subscribe("out", func(result map[string]interface{}) {
	    fmt.Println(result["count"], result["mean"])
	})
	wd.Publish("in", map[string]interface{}{"kind": "sensor", "value": 21.5}, time.Now())

Aggregates: count, min, max, mean, var, stdev. Variance and standard
deviation are computed online (Welford) and are sample statistics; both
are nil for windows with fewer than two samples.
*/
package windrill
