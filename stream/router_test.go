package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windrill/windrill/logger"
	"github.com/windrill/windrill/planner"
	"github.com/windrill/windrill/types"
	"github.com/windrill/windrill/wql"
)

func buildPlans(t *testing.T, source string) []*planner.Plan {
	t.Helper()
	stmts, err := wql.Parse(source)
	require.NoError(t, err)
	plans, err := planner.Build(stmts)
	require.NoError(t, err)
	return plans
}

func syncRouter(t *testing.T) *Router {
	t.Helper()
	cfg := types.DefaultConfig()
	cfg.SyncMode = true
	r, err := NewRouter(cfg, logger.NewDiscardLogger())
	require.NoError(t, err)
	return r
}

const countQuery = "define tumbling window `5secs` with interval = datetime::with_seconds(5) end;\n" +
	"select { \"count\": aggr::stats::count(), \"mean\": aggr::stats::mean(event.value) } from in[`5secs`] into out;"

func TestRouterEndToEnd(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var results []map[string]interface{}
	r.Subscribe("out", func(result map[string]interface{}) {
		results = append(results, result)
	})

	r.Publish("in", map[string]interface{}{"value": 10}, time.Unix(1, 0))
	r.Publish("in", map[string]interface{}{"value": 20}, time.Unix(3, 0))
	r.Publish("in", map[string]interface{}{"value": 30}, time.Unix(6, 0))

	require.Len(t, results, 1)
	assert.Equal(t, int64(2), results[0]["count"])
	assert.Equal(t, 15.0, results[0]["mean"])
}

func TestRouterIgnoresUnboundStream(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	r.Publish("other", map[string]interface{}{"value": 1}, time.Unix(1, 0))
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(1, 0))

	stats := r.Stats()
	assert.Equal(t, int64(2), stats["events_in"])
	assert.Equal(t, int64(2), stats["events_routed"])
}

func TestRouterGuardFiltersEvents(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	plans := buildPlans(t, "define tumbling window `5secs` with interval = datetime::with_seconds(5) end;\n"+
		"select { \"count\": aggr::stats::count() } from in[`5secs`] where event.kind == \"sensor\" into out;")
	for _, plan := range plans {
		require.NoError(t, r.Register(plan))
	}

	var results []map[string]interface{}
	r.Subscribe("out", func(result map[string]interface{}) {
		results = append(results, result)
	})

	r.Publish("in", map[string]interface{}{"kind": "sensor"}, time.Unix(1, 0))
	r.Publish("in", map[string]interface{}{"kind": "heartbeat"}, time.Unix(2, 0))
	r.Publish("in", map[string]interface{}{}, time.Unix(3, 0)) // guard field absent
	r.Tick(time.Unix(5, 0))

	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0]["count"])
	assert.Equal(t, int64(2), r.Stats()["events_filtered"])
}

func TestRouterMultipleSinks(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var mu sync.Mutex
	calls := 0
	for i := 0; i < 3; i++ {
		r.Subscribe("out", func(result map[string]interface{}) {
			mu.Lock()
			calls++
			mu.Unlock()
		})
	}

	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(1, 0))
	r.Tick(time.Unix(5, 0))

	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(3), r.Stats()["results_delivered"])
	assert.Equal(t, int64(1), r.Stats()["windows_emitted"])
}

func TestRouterAsyncDelivery(t *testing.T) {
	cfg := types.DefaultConfig()
	r, err := NewRouter(cfg, logger.NewDiscardLogger())
	require.NoError(t, err)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var mu sync.Mutex
	var results []map[string]interface{}
	r.Subscribe("out", func(result map[string]interface{}) {
		mu.Lock()
		results = append(results, result)
		mu.Unlock()
	})

	r.Publish("in", map[string]interface{}{"value": 10}, time.Unix(1, 0))
	r.Publish("in", map[string]interface{}{"value": 20}, time.Unix(6, 0))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(results) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, int64(1), results[0]["count"])
	mu.Unlock()
}

// Per-definition results arrive in bucket order even across a batch of
// catch-up closes.
func TestRouterEmissionOrder(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var counts []int64
	r.Subscribe("out", func(result map[string]interface{}) {
		counts = append(counts, result["count"].(int64))
	})

	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(1, 0))
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(2, 0))
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(7, 0))
	// Jump three buckets: bucket 1 closes with 1 event, 2 closes empty.
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(16, 0))

	require.Len(t, counts, 3)
	assert.Equal(t, []int64{2, 1, 0}, counts)
}

func TestRouterDrainOnStop(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.SyncMode = true
	cfg.DrainOnStop = true
	r, err := NewRouter(cfg, logger.NewDiscardLogger())
	require.NoError(t, err)
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var results []map[string]interface{}
	r.Subscribe("out", func(result map[string]interface{}) {
		results = append(results, result)
	})

	r.Publish("in", map[string]interface{}{"value": 7}, time.Unix(1, 0))
	r.Stop()

	require.Len(t, results, 1)
	assert.Equal(t, int64(1), results[0]["count"])
	assert.Equal(t, 7.0, results[0]["mean"])
}

func TestRouterDiscardOnStop(t *testing.T) {
	r := syncRouter(t)
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var results []map[string]interface{}
	r.Subscribe("out", func(result map[string]interface{}) {
		results = append(results, result)
	})

	r.Publish("in", map[string]interface{}{"value": 7}, time.Unix(1, 0))
	r.Stop()

	assert.Empty(t, results, "default shutdown discards open windows")
}

func TestRouterPublishAfterStop(t *testing.T) {
	r := syncRouter(t)
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}
	r.Stop()

	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(1, 0))
	assert.Equal(t, int64(0), r.Stats()["events_in"])
}

// A publisher blocked on a full input buffer must be released by a
// concurrent Stop, never crashed by it.
func TestRouterStopDuringBlockedPublish(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.BufferSize = 1
	r, err := NewRouter(cfg, logger.NewDiscardLogger())
	require.NoError(t, err)
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	// A slow sink keeps the dispatcher busy so the buffer fills up and
	// publishes start blocking in the channel send.
	r.Subscribe("out", func(result map[string]interface{}) {
		time.Sleep(20 * time.Millisecond)
	})

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < 50; i++ {
			// Every event lands in a fresh bucket, so each one closes
			// the previous window and hits the slow sink.
			r.Publish("in", map[string]interface{}{"value": i}, time.Unix(int64(i*6), 0))
		}
	}()

	time.Sleep(30 * time.Millisecond)
	r.Stop()
	<-published
}

// Publishers racing Stop onto streams the router has never seen must not
// leave Stop hanging on a dispatcher that was spawned too late.
func TestRouterStopWithConcurrentNewStreams(t *testing.T) {
	cfg := types.DefaultConfig()
	r, err := NewRouter(cfg, logger.NewDiscardLogger())
	require.NoError(t, err)
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				name := "in-" + string(rune('a'+g)) + "-" + string(rune('0'+i%10))
				r.Publish(name, map[string]interface{}{"value": i}, time.Unix(int64(i), 0))
			}
		}()
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()

	wg.Wait()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return with publishers racing onto new streams")
	}
}

func TestRouterLateStats(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	for _, plan := range buildPlans(t, countQuery) {
		require.NoError(t, r.Register(plan))
	}

	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(6, 0))
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(12, 0))
	r.Publish("in", map[string]interface{}{"value": 1}, time.Unix(2, 0)) // late

	assert.Equal(t, int64(1), r.Stats()["late_dropped"])
}

func TestRouterMultiplePlansOneStream(t *testing.T) {
	r := syncRouter(t)
	defer r.Stop()
	plans := buildPlans(t, `
define tumbling window `+"`5secs`"+` with interval = datetime::with_seconds(5) end;
define tumbling window `+"`10secs`"+` with interval = datetime::with_seconds(10) end;
select { "c": aggr::stats::count() } from in[`+"`5secs`"+`] into fast;
select { "c": aggr::stats::count() } from in[`+"`10secs`"+`] into slow;
`)
	require.Len(t, plans, 2)
	for _, plan := range plans {
		require.NoError(t, r.Register(plan))
	}

	var fast, slow []map[string]interface{}
	r.Subscribe("fast", func(result map[string]interface{}) { fast = append(fast, result) })
	r.Subscribe("slow", func(result map[string]interface{}) { slow = append(slow, result) })

	for sec := 1; sec <= 21; sec += 2 {
		r.Publish("in", map[string]interface{}{"value": sec}, time.Unix(int64(sec), 0))
	}

	require.Len(t, fast, 4)
	require.Len(t, slow, 2)
	assert.Equal(t, int64(2), fast[0]["c"])
	assert.Equal(t, int64(5), slow[0]["c"])
}
