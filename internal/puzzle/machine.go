package puzzle

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Machine is the contract every puzzle implements. All methods are safe for
// concurrent use; each machine serializes them behind its own mutex.
type Machine interface {
	ID() int

	// Initialize cancels everything left over from a previous activation,
	// resets all fields to the first round and pushes a full snapshot.
	Initialize()

	// HandleEvent applies one device event (the tokens after "P<id>").
	// A non-nil error means the event was dropped without changing state.
	HandleEvent(args []string) error

	// Reset returns the puzzle to its defined restart point.
	// It is a no-op once the puzzle is solved.
	Reset()

	// Snapshot returns the observer view of the current state. It never mutates.
	Snapshot() Update
}

// TimeoutHandler is implemented by machines that override what happens when an
// external countdown runs out. OnTimeout returns false to ask for the default,
// which is Reset.
type TimeoutHandler interface {
	OnTimeout() bool
}

// Env is what every machine needs from its surroundings.
type Env struct {
	Sink      Sink
	Publisher Publisher
	Clock     Clock

	// Active is shared with the engine. Nil means the machine always treats
	// itself as live.
	Active *Active

	// Seed fixes the random source of every machine built with this Env.
	// Zero seeds from the clock.
	Seed uint64

	Logger logrus.FieldLogger
}

func (e Env) withDefaults() Env {
	if e.Sink == nil {
		e.Sink = discard{}
	}
	if e.Publisher == nil {
		e.Publisher = discard{}
	}
	if e.Clock == nil {
		e.Clock = RealClock()
	}
	if e.Logger == nil {
		e.Logger = logrus.StandardLogger()
	}
	return e
}

type task struct {
	timer Timer
}

// base carries the state shared by every protocol machine: the lock, the
// activation generation and the set of pending timers.
//
// Unexported helpers expect mu to be held.
type base struct {
	mu sync.Mutex

	id     int
	timed  bool
	env    Env
	rng    *rand.Rand
	logger logrus.FieldLogger

	gen        uint64
	timers     map[*task]struct{}
	solved     bool
	activation string

	// endCommand is published once when the puzzle is solved.
	endCommand string
}

func (b *base) init(id int, env Env) {
	env = env.withDefaults()
	seed := env.Seed
	if seed == 0 {
		seed = uint64(env.Clock.Now().UnixNano())
	}
	b.id = id
	b.env = env
	b.rng = rand.New(rand.NewPCG(seed, uint64(id)))
	b.logger = env.Logger.WithField("puzzle_id", id)
	b.timers = make(map[*task]struct{})
	b.endCommand = devicebus.EndCommand(id)
}

// ID returns the puzzle id.
func (b *base) ID() int {
	return b.id
}

// Timed reports whether observers run a countdown for this puzzle.
func (b *base) Timed() bool {
	return b.timed
}

// Activation returns the id of the current activation, or "" before the first one.
func (b *base) Activation() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activation
}

// Solved reports whether the current activation reached its terminal state.
func (b *base) Solved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.solved
}

func (b *base) begin() {
	b.invalidate()
	b.solved = false
	b.activation = uuid.NewString()
}

// invalidate makes every pending task stale and stops its timer.
func (b *base) invalidate() {
	b.gen++
	for t := range b.timers {
		t.timer.Stop()
	}
	clear(b.timers)
}

func (b *base) live() bool {
	return b.env.Active == nil || b.env.Active.Is(b.id)
}

// schedule runs fn after d with the lock held, unless the puzzle was
// invalidated, solved or switched away from in the meantime.
func (b *base) schedule(d time.Duration, fn func()) {
	gen := b.gen
	t := &task{}
	t.timer = b.env.Clock.AfterFunc(d, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.timers, t)
		if gen != b.gen || b.solved || !b.live() {
			b.logger.WithField("generation", gen).Debug("stale task skipped")
			return
		}
		fn()
	})
	b.timers[t] = struct{}{}
}

// after is schedule, except that a non-positive delay runs fn immediately.
func (b *base) after(d time.Duration, fn func()) {
	if d <= 0 {
		fn()
		return
	}
	b.schedule(d, fn)
}

func (b *base) pending() int {
	return len(b.timers)
}

func (b *base) push(fields Update) {
	b.env.Sink.Push(NewUpdate(b.id).Merge(fields))
}

func (b *base) publish(command string) {
	b.env.Publisher.Publish(command)
}

// solve ends the activation: it cancels pending work, publishes the end
// command and pushes the solved update. Only the first call has any effect.
func (b *base) solve(extra Update) bool {
	if b.solved {
		return false
	}
	b.solved = true
	b.invalidate()
	b.publish(b.endCommand)
	b.push(Update{"puzzle_solved": true}.Merge(extra))
	b.logger.WithField("activation", b.activation).Info("puzzle solved")
	return true
}

// PendingTasks returns how many scheduled tasks are still waiting to fire.
func (b *base) PendingTasks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending()
}

// Span is an inclusive range of durations picked uniformly at whole-second
// granularity.
type Span struct {
	Min time.Duration
	Max time.Duration
}

func (s Span) pick(rng *rand.Rand) time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	secs := int64((s.Max - s.Min) / time.Second)
	return s.Min + time.Duration(rng.Int64N(secs+1))*time.Second
}
