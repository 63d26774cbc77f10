package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lair/internal/catalog"
	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
	"github.com/dyluth/lair/internal/testutil"
	"github.com/dyluth/lair/pkg/devicebus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env     *testutil.Env
	engine  *Engine
	metrics *Collector
	logs    *logtest.Hook
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	cfg := config.Default()
	cfg.Puzzles.Codes.Codes = map[int]string{0: "0424", 1: "4143"}

	env := testutil.NewEnv()
	machines, err := catalog.Build(cfg, env.Puzzle())
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	metrics := NewCollector("test")
	opts.InstanceName = "test-instance"
	opts.Sink = env.Sink
	opts.Publisher = env.Publisher
	opts.Logger = logger
	opts.Metrics = metrics

	engine, err := NewEngine(env.Active, machines, opts)
	require.NoError(t, err)

	return &fixture{env: env, engine: engine, metrics: metrics, logs: hook}
}

func TestNewEngine_RejectsDuplicateIDs(t *testing.T) {
	env := testutil.NewEnv()
	a := puzzle.NewSlots(4, env.Puzzle(), puzzle.SlotsConfig{Solution: map[int]int{0: 1}})
	b := puzzle.NewSlots(4, env.Puzzle(), puzzle.SlotsConfig{Solution: map[int]int{0: 2}})

	_, err := NewEngine(env.Active, []puzzle.Machine{a, b}, Options{})
	assert.ErrorContains(t, err, "duplicate puzzle id 4")

	_, err = NewEngine(nil, nil, Options{})
	assert.Error(t, err)
}

func TestEngine_StartActivatesAndAnnounces(t *testing.T) {
	f := newFixture(t, Options{})

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, f.engine.Puzzles())
	assert.Equal(t, 0, f.engine.Active())
	assert.Equal(t, puzzle.Update{}, f.engine.Snapshot())

	require.NoError(t, f.engine.Start(1))
	assert.Equal(t, 1, f.engine.Active())
	assert.Equal(t, []string{"P1Start"}, f.env.Publisher.Commands())
	assert.Equal(t, true, f.env.Sink.Last()["start_timer"], "sums runs against the observer timer")
	assert.Equal(t, 1, f.engine.Snapshot()["puzzle_id"])
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.activePuzzle))

	f.env.Sink.Clear()
	require.NoError(t, f.engine.Start(7))
	assert.Equal(t, 7, f.engine.Active())
	assert.Empty(t, f.env.Sink.With("start_timer"), "codes are untimed")
}

func TestEngine_UnknownPuzzle(t *testing.T) {
	f := newFixture(t, Options{})

	err := f.engine.Start(42)
	assert.ErrorIs(t, err, ErrUnknownPuzzle)
	assert.Equal(t, 0, f.engine.Active())
	assert.Empty(t, f.env.Publisher.Commands())

	assert.ErrorIs(t, f.engine.OnDeviceMessage("P42,1,2"), ErrUnknownPuzzle)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsDropped.WithLabelValues(ReasonUnknown)))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.operatorTotal.WithLabelValues("start", "error")))
}

func TestEngine_MalformedPayloadIsDropped(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))

	for _, raw := range []string{"", "hello", "P,1", "Px,1"} {
		assert.ErrorIs(t, f.engine.OnDeviceMessage(raw), devicebus.ErrMalformedEvent, raw)
	}
	assert.Equal(t, 4.0, promtest.ToFloat64(f.metrics.eventsDropped.WithLabelValues(ReasonMalformed)))
}

func TestEngine_RoutesOnlyToActivePuzzle(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))
	before := f.env.Sink.Count()

	assert.ErrorIs(t, f.engine.OnDeviceMessage("P9,0,22"), ErrNotActive)
	assert.Equal(t, before, f.env.Sink.Count(), "events for other puzzles change nothing")

	require.NoError(t, f.engine.OnDeviceMessage("P7, 0 , 0424"))
	assert.Equal(t, []int{0}, f.engine.Snapshot()["solved_boxes"])
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsTotal.WithLabelValues("7")))

	f.engine.Stop()
	assert.Equal(t, 0, f.engine.Active())
	assert.ErrorIs(t, f.engine.OnDeviceMessage("P7,1,4143"), ErrNotActive)
	assert.Equal(t, puzzle.Update{}, f.engine.Snapshot())
}

func TestEngine_RestartDiscardsProgress(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))
	require.NoError(t, f.engine.OnDeviceMessage("P7,0,0424"))

	require.NoError(t, f.engine.Start(7))
	assert.Equal(t, []int{}, f.engine.Snapshot()["solved_boxes"])
	assert.Equal(t, 2, f.env.Publisher.Count("P7Start"))
}

func TestEngine_SolvedPuzzleIgnoresEverything(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))
	require.NoError(t, f.engine.OnDeviceMessage("P7,0,0424"))
	require.NoError(t, f.engine.OnDeviceMessage("P7,1,4143"))
	require.Equal(t, []string{"P7Start", "P7End"}, f.env.Publisher.Commands())

	assert.ErrorIs(t, f.engine.OnDeviceMessage("P7,0,0424"), puzzle.ErrSolved)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsRejected.WithLabelValues("7", ReasonSolved)))

	f.engine.Reset()
	assert.Equal(t, true, f.engine.Snapshot()["puzzle_solved"])
	assert.Equal(t, 1, f.env.Publisher.Count("P7End"))
}

func TestEngine_RejectedEventsAreClassified(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))

	assert.ErrorIs(t, f.engine.OnDeviceMessage("P7,9,1111"), puzzle.ErrInvalidTarget)
	assert.ErrorIs(t, f.engine.OnDeviceMessage("P7,0"), puzzle.ErrMalformedInput)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsRejected.WithLabelValues("7", ReasonInvalid)))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsRejected.WithLabelValues("7", ReasonMalformed)))

	var rejected int
	for _, entry := range f.logs.AllEntries() {
		if entry.Data["event_type"] == "event_rejected" {
			rejected++
			assert.Equal(t, "orchestrator", entry.Data["component"])
			assert.Equal(t, "test-instance", entry.Data["instance"])
			assert.Equal(t, logrus.WarnLevel, entry.Level)
		}
	}
	assert.Equal(t, 2, rejected)
}

func TestEngine_ResetWithoutActivePuzzleIsNoop(t *testing.T) {
	f := newFixture(t, Options{})

	f.engine.Reset()
	f.engine.TimerExpired()
	assert.Equal(t, 0, f.env.Sink.Count())
}

func TestEngine_TimerExpiredDefaultsToReset(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))
	require.NoError(t, f.engine.OnDeviceMessage("P7,0,0424"))

	f.engine.TimerExpired()
	last := f.env.Sink.Last()
	assert.Equal(t, 7, last["puzzle_id"])
	assert.Equal(t, true, last["start_timer"])
	assert.Equal(t, []int{}, f.engine.Snapshot()["solved_boxes"])
}

func TestEngine_TimerExpiredAfterSolveIsIgnored(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(7))
	require.NoError(t, f.engine.OnDeviceMessage("P7,0,0424"))
	require.NoError(t, f.engine.OnDeviceMessage("P7,1,4143"))
	pushes := f.env.Sink.Count()

	f.engine.TimerExpired()
	assert.Equal(t, pushes, f.env.Sink.Count(), "a solved puzzle never restarts the observer timer")
	assert.Equal(t, true, f.engine.Snapshot()["puzzle_solved"])
}

func TestEngine_TimerExpiredDelegatesToPuzzle(t *testing.T) {
	f := newFixture(t, Options{})
	require.NoError(t, f.engine.Start(1))

	f.engine.TimerExpired()
	assert.Equal(t, true, f.env.Sink.Last()["timed_out"])
	assert.Equal(t, 1, f.engine.Snapshot()["round"], "sums keeps its round after a timeout")

	f.env.Clock.Advance(5 * time.Second)
	assert.Equal(t, true, f.env.Sink.Last()["start_timer"])
}

func TestEngine_RateLimit(t *testing.T) {
	f := newFixture(t, Options{MaxEventsPerSecond: 1, Burst: 1})
	require.NoError(t, f.engine.Start(7))

	require.NoError(t, f.engine.OnDeviceMessage("P7,0,0424"))
	assert.ErrorIs(t, f.engine.OnDeviceMessage("P7,1,4143"), ErrRateLimited)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.eventsDropped.WithLabelValues(ReasonRateLimited)))
	assert.NotEqual(t, true, f.engine.Snapshot()["puzzle_solved"])
}

func TestEngine_RunDispatchesBusEvents(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := devicebus.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance", devicebus.DefaultTopics())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	f := newFixture(t, Options{Client: client})
	require.NoError(t, f.engine.Start(7))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.Run(ctx) }()

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) > 0
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, client.PublishDeviceEvent(ctx, "P7,0,0424"))
	require.NoError(t, client.PublishDeviceEvent(ctx, "garbage"))
	require.NoError(t, client.PublishDeviceEvent(ctx, "P7,1,4143"))

	assert.Eventually(t, func() bool {
		return f.env.Publisher.Count("P7End") == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestEngine_RunRequiresClient(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Error(t, f.engine.Run(context.Background()))
}
