package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dyluth/lair/internal/puzzle"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownPuzzle is returned for ids that are not in the registry.
	ErrUnknownPuzzle = errors.New("unknown puzzle")
	// ErrNotActive marks device events addressed to a puzzle that is not active.
	ErrNotActive = errors.New("puzzle not active")
	// ErrRateLimited marks device events dropped by the inbound flood guard.
	ErrRateLimited = errors.New("inbound rate limit exceeded")
)

// Options configures an Engine. Every field is optional.
type Options struct {
	// Client is the device bus Run subscribes to.
	Client       *devicebus.Client
	InstanceName string

	// Sink receives the engine's own updates (start_timer).
	Sink puzzle.Sink
	// Publisher receives start commands.
	Publisher puzzle.Publisher

	// MaxEventsPerSecond bounds inbound device events; 0 disables the guard.
	MaxEventsPerSecond float64
	Burst              int

	Logger  logrus.FieldLogger
	Metrics *Collector
}

// Engine routes operator commands and device events to the puzzles. It owns
// the active puzzle id and never holds a lock while a puzzle method runs: the
// registry is immutable and the active id is a shared atomic.
type Engine struct {
	client       *devicebus.Client
	instanceName string
	active       *puzzle.Active
	registry     map[int]puzzle.Machine
	ids          []int
	sink         puzzle.Sink
	publisher    puzzle.Publisher
	limiter      *rate.Limiter
	logger       logrus.FieldLogger
	metrics      *Collector
}

// NewEngine creates an engine over machines. active must be the same value
// the machines were built with so their scheduled tasks see activation changes.
func NewEngine(active *puzzle.Active, machines []puzzle.Machine, opts Options) (*Engine, error) {
	if active == nil {
		return nil, fmt.Errorf("active puzzle holder is required")
	}

	registry := make(map[int]puzzle.Machine, len(machines))
	ids := make([]int, 0, len(machines))
	for _, m := range machines {
		if _, exists := registry[m.ID()]; exists {
			return nil, fmt.Errorf("duplicate puzzle id %d", m.ID())
		}
		registry[m.ID()] = m
		ids = append(ids, m.ID())
	}
	slices.Sort(ids)

	e := &Engine{
		client:       opts.Client,
		instanceName: opts.InstanceName,
		active:       active,
		registry:     registry,
		ids:          ids,
		sink:         opts.Sink,
		publisher:    opts.Publisher,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if e.sink == nil {
		e.sink = puzzle.SinkFunc(func(puzzle.Update) {})
	}
	if e.publisher == nil {
		e.publisher = puzzle.PublisherFunc(func(string) {})
	}
	if e.logger == nil {
		e.logger = logrus.StandardLogger()
	}
	if e.metrics == nil {
		e.metrics = NewCollector("")
	}
	if opts.MaxEventsPerSecond > 0 {
		burst := max(opts.Burst, 1)
		e.limiter = rate.NewLimiter(rate.Limit(opts.MaxEventsPerSecond), burst)
	}
	return e, nil
}

// Run subscribes to inbound device events and dispatches them until the
// context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if e.client == nil {
		return fmt.Errorf("engine has no device bus client")
	}

	e.logEvent(logrus.InfoLevel, "engine_starting", logrus.Fields{"puzzles": e.ids})

	subscription, err := e.client.SubscribeDeviceEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to device events: %w", err)
	}
	defer subscription.Close()

	e.logEvent(logrus.InfoLevel, "subscribed", logrus.Fields{"topic": e.client.Topics().Inbound})

	for {
		select {
		case <-ctx.Done():
			e.logEvent(logrus.InfoLevel, "engine_stopping", logrus.Fields{})
			return nil

		case raw, ok := <-subscription.Events():
			if !ok {
				e.logEvent(logrus.InfoLevel, "subscription_closed", logrus.Fields{})
				return nil
			}
			// Errors are logged and counted by OnDeviceMessage; one bad event never stops the loop.
			_ = e.OnDeviceMessage(raw)

		case err, ok := <-subscription.Errors():
			if !ok {
				e.logEvent(logrus.InfoLevel, "error_channel_closed", logrus.Fields{})
				return nil
			}
			e.logEvent(logrus.WarnLevel, "subscription_error", logrus.Fields{"error": err.Error()})
		}
	}
}

// Start makes id the active puzzle and (re)initializes it. Starting the
// already active puzzle restarts it; tasks of the previous activation go stale.
func (e *Engine) Start(id int) error {
	m, ok := e.registry[id]
	if !ok {
		err := fmt.Errorf("%w: %d", ErrUnknownPuzzle, id)
		e.metrics.RecordOperator("start", err)
		e.logEvent(logrus.WarnLevel, "start_rejected", logrus.Fields{"puzzle_id": id, "error": err.Error()})
		return err
	}

	prev := e.active.Set(id)
	m.Initialize()
	e.publisher.Publish(devicebus.StartCommand(id))
	if timed, ok := m.(interface{ Timed() bool }); ok && timed.Timed() {
		e.sink.Push(puzzle.NewUpdate(id).With("start_timer", true))
	}

	e.metrics.RecordActive(id)
	e.metrics.RecordOperator("start", nil)
	e.logEvent(logrus.InfoLevel, "puzzle_started", logrus.Fields{"puzzle_id": id, "previous": prev})
	return nil
}

// Stop clears the active puzzle. Puzzle state is kept until the next Start.
func (e *Engine) Stop() {
	prev := e.active.Clear()
	e.metrics.RecordActive(0)
	e.metrics.RecordOperator("stop", nil)
	e.logEvent(logrus.InfoLevel, "puzzle_stopped", logrus.Fields{"puzzle_id": prev})
}

// Reset resets the active puzzle. It does nothing when no puzzle is active.
func (e *Engine) Reset() {
	m := e.current()
	if m == nil {
		e.logEvent(logrus.DebugLevel, "reset_ignored", logrus.Fields{"reason": "no active puzzle"})
		return
	}
	m.Reset()
	e.metrics.RecordOperator("reset", nil)
	e.logEvent(logrus.InfoLevel, "puzzle_reset", logrus.Fields{"puzzle_id": m.ID()})
}

// TimerExpired reports that the observer-side countdown ran out. Puzzles
// that handle timeouts themselves decide what happens; the rest are reset
// and asked to restart their timer.
func (e *Engine) TimerExpired() {
	m := e.current()
	if m == nil {
		e.logEvent(logrus.DebugLevel, "timer_expired_ignored", logrus.Fields{"reason": "no active puzzle"})
		return
	}

	e.metrics.RecordOperator("timer_expired", nil)
	if s, ok := m.(interface{ Solved() bool }); ok && s.Solved() {
		e.logEvent(logrus.DebugLevel, "timer_expired_ignored", logrus.Fields{"puzzle_id": m.ID(), "reason": "solved"})
		return
	}
	if h, ok := m.(puzzle.TimeoutHandler); ok && h.OnTimeout() {
		e.logEvent(logrus.InfoLevel, "timer_expired", logrus.Fields{"puzzle_id": m.ID(), "handled_by": "puzzle"})
		return
	}
	m.Reset()
	e.sink.Push(puzzle.NewUpdate(m.ID()).With("start_timer", true))
	e.logEvent(logrus.InfoLevel, "timer_expired", logrus.Fields{"puzzle_id": m.ID(), "handled_by": "reset"})
}

// OnDeviceMessage routes one raw inbound payload. Every failure is logged and
// counted here; the returned error only tells the caller what happened.
func (e *Engine) OnDeviceMessage(raw string) error {
	ev, err := devicebus.ParseDeviceEvent(raw)
	if err != nil {
		e.drop(ReasonMalformed, logrus.Fields{"raw": raw, "error": err.Error()})
		return err
	}

	m, ok := e.registry[ev.PuzzleID]
	if !ok {
		e.drop(ReasonUnknown, logrus.Fields{"raw": raw, "puzzle_id": ev.PuzzleID})
		return fmt.Errorf("%w: %d", ErrUnknownPuzzle, ev.PuzzleID)
	}

	if !e.active.Is(ev.PuzzleID) {
		e.drop(ReasonNotActive, logrus.Fields{"raw": raw, "puzzle_id": ev.PuzzleID, "active": e.active.Get()})
		return fmt.Errorf("%w: %d", ErrNotActive, ev.PuzzleID)
	}

	if e.limiter != nil && !e.limiter.Allow() {
		e.drop(ReasonRateLimited, logrus.Fields{"raw": raw, "puzzle_id": ev.PuzzleID})
		return ErrRateLimited
	}

	if err := m.HandleEvent(ev.Args); err != nil {
		reason := classify(err)
		e.metrics.RecordRejected(ev.PuzzleID, reason)
		e.logEvent(logrus.WarnLevel, "event_rejected", logrus.Fields{
			"raw":       raw,
			"puzzle_id": ev.PuzzleID,
			"reason":    reason,
			"error":     err.Error(),
		})
		return fmt.Errorf("puzzle %d rejected %q: %w", ev.PuzzleID, raw, err)
	}

	e.metrics.RecordHandled(ev.PuzzleID)
	e.logEvent(logrus.DebugLevel, "event_handled", logrus.Fields{
		"puzzle_id": ev.PuzzleID,
		"kind":      ev.Kind,
		"args":      ev.Args,
	})
	return nil
}

// Snapshot returns the active puzzle's snapshot, or an empty update when no
// puzzle is active.
func (e *Engine) Snapshot() puzzle.Update {
	m := e.current()
	if m == nil {
		return puzzle.Update{}
	}
	return m.Snapshot()
}

// Active returns the active puzzle id, 0 when none.
func (e *Engine) Active() int {
	return e.active.Get()
}

// Puzzles returns the registered puzzle ids in ascending order.
func (e *Engine) Puzzles() []int {
	return slices.Clone(e.ids)
}

func (e *Engine) current() puzzle.Machine {
	id := e.active.Get()
	if id == 0 {
		return nil
	}
	return e.registry[id]
}

func (e *Engine) drop(reason string, fields logrus.Fields) {
	e.metrics.RecordDropped(reason)
	fields["reason"] = reason
	e.logEvent(logrus.DebugLevel, "event_dropped", fields)
}

func classify(err error) string {
	switch {
	case errors.Is(err, puzzle.ErrMalformedInput):
		return ReasonMalformed
	case errors.Is(err, puzzle.ErrInvalidTarget):
		return ReasonInvalid
	case errors.Is(err, puzzle.ErrDuplicateSubmission):
		return ReasonDuplicate
	case errors.Is(err, puzzle.ErrInputBlocked):
		return ReasonBlocked
	case errors.Is(err, puzzle.ErrSolved):
		return ReasonSolved
	}
	return ReasonUnclassified
}

// logEvent logs a structured engine event.
func (e *Engine) logEvent(level logrus.Level, eventType string, fields logrus.Fields) {
	fields["component"] = "orchestrator"
	fields["event_type"] = eventType
	fields["instance"] = e.instanceName
	e.logger.WithFields(fields).Log(level, eventType)
}
