package puzzle

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Report is one actor's value for the current round.
type Report struct {
	Actor int
	Value float64
}

// RetryPolicy selects what a failed round does.
type RetryPolicy int

const (
	// RetryRound reopens the same round with all reports cleared.
	RetryRound RetryPolicy = iota
	// RestartRun draws fresh content and starts over from round 1.
	RestartRun
)

// AggregateRules supplies the content of a round-tolerance puzzle. Every
// method is called with the puzzle lock held; report slices are sorted by actor
// and owned by the callee.
type AggregateRules interface {
	// Parse returns the reporting actor and its value.
	Parse(args []string) (actor int, value float64, err error)
	// Restart prepares content for a run starting at round 1.
	Restart(rng *rand.Rand)
	// Open returns the fields pushed when a round opens.
	Open(round int) Update
	// RoundCommand returns the device command published when a round opens, or "".
	RoundCommand(round int) string
	// Score maps one report to its share of the round aggregate.
	Score(round int, value float64) float64
	// Limit is the largest aggregate that still passes the round.
	Limit(round int) float64
	// Reported returns the fields pushed after an actor reported.
	Reported(round int, r Report, reports []Report) Update
	// Result returns the fields pushed when the round is evaluated.
	Result(round int, reports []Report, total float64, success bool) Update
	// Waiting returns the fields pushed while the next round is pending, or nil.
	Waiting(round int, delay time.Duration, retry bool) Update
	// Render returns the snapshot fields for the current round.
	Render(round int, reports []Report) Update
}

// AggregateConfig parameterizes a round-tolerance puzzle.
type AggregateConfig struct {
	Actors     int
	FirstActor int
	Rounds     int

	StartDelay     time.Duration
	EvalDelay      time.Duration
	ResultHold     time.Duration
	NextRoundDelay time.Duration
	RetryDelay     time.Duration

	Retry RetryPolicy

	// SolveOnResult solves with the final round's result instead of after ResultHold.
	SolveOnResult bool
	// EndCommand replaces the default P<id>End command.
	EndCommand    string
}

// Aggregate implements the round-tolerance aggregation protocol: every actor
// reports once per round, and the round passes when the summed score is
// within the round's limit.
type Aggregate struct {
	base
	cfg   AggregateConfig
	rules AggregateRules

	round   int
	open    bool
	waiting bool
	reports map[int]float64
}

// NewAggregate builds a round-tolerance puzzle.
func NewAggregate(id int, env Env, cfg AggregateConfig, rules AggregateRules) *Aggregate {
	if cfg.Rounds < 1 {
		cfg.Rounds = 1
	}
	a := &Aggregate{cfg: cfg, rules: rules, reports: make(map[int]float64)}
	a.init(id, env)
	if cfg.EndCommand != "" {
		a.endCommand = cfg.EndCommand
	}
	return a
}

// Initialize implements Machine.
func (a *Aggregate) Initialize() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.begin()
	a.restartRun()
}

// Reset starts the run over, exactly as a fresh activation would.
func (a *Aggregate) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.solved {
		return
	}
	a.invalidate()
	a.restartRun()
}

// Snapshot implements Machine.
func (a *Aggregate) Snapshot() Update {
	a.mu.Lock()
	defer a.mu.Unlock()
	return NewUpdate(a.id).Merge(a.view())
}

// HandleEvent implements Machine.
func (a *Aggregate) HandleEvent(args []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.solved {
		return ErrSolved
	}
	actor, value, err := a.rules.Parse(args)
	if err != nil {
		return err
	}
	if actor < a.cfg.FirstActor || actor >= a.cfg.FirstActor+a.cfg.Actors {
		return fmt.Errorf("%w: actor %d", ErrInvalidTarget, actor)
	}
	if !a.open {
		return ErrInputBlocked
	}
	if _, dup := a.reports[actor]; dup {
		return fmt.Errorf("%w: actor %d", ErrDuplicateSubmission, actor)
	}

	a.reports[actor] = value
	r := Report{Actor: actor, Value: value}
	a.push(a.rules.Reported(a.round, r, a.sorted()).With("round", a.round))

	if len(a.reports) >= a.cfg.Actors {
		a.open = false
		a.after(a.cfg.EvalDelay, a.evaluate)
	}
	return nil
}

func (a *Aggregate) restartRun() {
	a.rules.Restart(a.rng)
	a.round = 0
	a.open = false
	a.waiting = false
	clear(a.reports)
	a.push(a.view())

	if a.cfg.StartDelay > 0 {
		a.wait(1, a.cfg.StartDelay, false)
		return
	}
	a.openRound(1)
}

func (a *Aggregate) openRound(round int) {
	a.round = round
	a.open = true
	a.waiting = false
	clear(a.reports)

	if cmd := a.rules.RoundCommand(round); cmd != "" {
		a.publish(cmd)
	}
	a.push(a.rules.Open(round).With("round", round).With("round_start", true))
}

func (a *Aggregate) wait(round int, delay time.Duration, retry bool) {
	a.waiting = true
	if fields := a.rules.Waiting(round, delay, retry); fields != nil {
		a.push(fields)
	}
	a.after(delay, func() { a.openRound(round) })
}

func (a *Aggregate) evaluate() {
	reports := a.sorted()
	var total float64
	for _, r := range reports {
		total += a.rules.Score(a.round, r.Value)
	}
	success := total <= a.rules.Limit(a.round)

	a.push(a.rules.Result(a.round, reports, total, success).With("round", a.round))
	if success && a.round >= a.cfg.Rounds && a.cfg.SolveOnResult {
		a.settle(success)
		return
	}
	a.after(a.cfg.ResultHold, func() { a.settle(success) })
}

func (a *Aggregate) settle(success bool) {
	switch {
	case success && a.round >= a.cfg.Rounds:
		a.solve(Update{"round": a.round})
	case success:
		a.wait(a.round+1, a.cfg.NextRoundDelay, false)
	case a.cfg.Retry == RestartRun:
		a.rules.Restart(a.rng)
		clear(a.reports)
		a.wait(1, a.cfg.RetryDelay, true)
	default:
		clear(a.reports)
		a.wait(a.round, a.cfg.RetryDelay, true)
	}
}

func (a *Aggregate) sorted() []Report {
	out := make([]Report, 0, len(a.reports))
	for actor, v := range a.reports {
		out = append(out, Report{Actor: actor, Value: v})
	}
	slices.SortFunc(out, func(x, y Report) int { return cmp.Compare(x.Actor, y.Actor) })
	return out
}

func (a *Aggregate) view() Update {
	return a.rules.Render(a.round, a.sorted()).
		With("round", a.round).
		With("active_round", a.open).
		With("waiting", a.waiting).
		With("puzzle_solved", a.solved)
}
