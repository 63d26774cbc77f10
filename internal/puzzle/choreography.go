package puzzle

import (
	"math/rand/v2"
	"time"
)

// Phases every choreography passes through besides the ones named by its script.
const (
	PhaseIdle       = "idle"
	PhaseInput      = "input"
	PhaseEvaluating = "evaluating"
	PhaseResult     = "result"
	PhaseCompletion = "completion"
)

// Step is one timed reveal phase of a choreography round.
type Step struct {
	Phase  string
	Hold   time.Duration
	Fields Update
}

// Outcome is what a choreography's rules made of one device event.
type Outcome struct {
	// Fields are pushed when non-nil.
	Fields Update
	// Skip ends the current reveal step early.
	Skip bool
	// Done closes the input phase and starts the evaluation.
	Done bool
}

// FailureMode selects where a failed round goes back to.
type FailureMode int

const (
	// Replay runs the whole round script again.
	Replay FailureMode = iota
	// RetryInput returns straight to the input phase with the input cleared.
	RetryInput
)

// ChoreographyRules supplies the scripted content of a phased puzzle. Every
// method is called with the puzzle lock held.
type ChoreographyRules interface {
	// Script returns the reveal steps of a round. The input phase follows the last step.
	Script(round int, rng *rand.Rand) []Step
	// InputFields returns the fields pushed when the input phase opens.
	InputFields(round int) Update
	// Accept applies one device event. Events the phase does not take return ErrInputBlocked.
	Accept(phase string, round int, args []string) (Outcome, error)
	// Evaluate judges the collected input and returns the result cue.
	Evaluate(round int) (success bool, fields Update)
	// ClearInput forgets everything collected in the input phase.
	ClearInput()
	// Completion returns the fields shown during the completion hold.
	Completion(round int) Update
	// Render returns the snapshot fields for the phase.
	Render(phase string, round int) Update
}

// ChoreographyConfig parameterizes a phased puzzle.
type ChoreographyConfig struct {
	Rounds         int
	EvalDelay      time.Duration
	ResultHold     time.Duration
	CompletionHold time.Duration
	OnFailure      FailureMode
}

// Choreography implements the phased choreography protocol: a scheduler-driven
// run of reveal phases, an input phase, and a delayed evaluation.
type Choreography struct {
	base
	cfg   ChoreographyConfig
	rules ChoreographyRules

	round   int
	phase   string
	script  []Step
	step    int
	stepSeq uint64
}

// NewChoreography builds a phased puzzle.
func NewChoreography(id int, env Env, cfg ChoreographyConfig, rules ChoreographyRules) *Choreography {
	if cfg.Rounds < 1 {
		cfg.Rounds = 1
	}
	c := &Choreography{cfg: cfg, rules: rules, phase: PhaseIdle}
	c.init(id, env)
	return c
}

// Initialize implements Machine.
func (c *Choreography) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	c.restart()
}

// Reset starts over from the first round.
func (c *Choreography) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.solved {
		return
	}
	c.invalidate()
	c.restart()
}

// Snapshot implements Machine.
func (c *Choreography) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewUpdate(c.id).Merge(c.view())
}

// HandleEvent implements Machine.
func (c *Choreography) HandleEvent(args []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.solved {
		return ErrSolved
	}
	switch c.phase {
	case PhaseEvaluating, PhaseResult, PhaseCompletion:
		return ErrInputBlocked
	}

	out, err := c.rules.Accept(c.phase, c.round, args)
	if err != nil {
		return err
	}
	if out.Fields != nil {
		c.pushPhase(out.Fields)
	}

	switch {
	case out.Done && c.phase == PhaseInput:
		c.phase = PhaseEvaluating
		c.after(c.cfg.EvalDelay, c.evaluate)
	case out.Skip && c.phase != PhaseInput:
		c.runStep(c.step + 1)
	}
	return nil
}

func (c *Choreography) restart() {
	c.round = 1
	c.phase = PhaseIdle
	c.rules.ClearInput()
	c.push(c.view())
	c.runCycle()
}

func (c *Choreography) runCycle() {
	c.script = c.rules.Script(c.round, c.rng)
	c.runStep(0)
}

func (c *Choreography) runStep(i int) {
	c.stepSeq++
	if i >= len(c.script) {
		c.enterInput()
		return
	}

	c.step = i
	s := c.script[i]
	c.phase = s.Phase
	c.pushPhase(s.Fields)

	seq := c.stepSeq
	c.schedule(s.Hold, func() {
		if seq == c.stepSeq {
			c.runStep(i + 1)
		}
	})
}

func (c *Choreography) enterInput() {
	c.phase = PhaseInput
	c.pushPhase(c.rules.InputFields(c.round))
}

func (c *Choreography) evaluate() {
	success, fields := c.rules.Evaluate(c.round)
	c.phase = PhaseResult
	c.pushPhase(fields)
	c.after(c.cfg.ResultHold, func() { c.settle(success) })
}

func (c *Choreography) settle(success bool) {
	switch {
	case success && c.round >= c.cfg.Rounds:
		if c.cfg.CompletionHold <= 0 {
			c.solve(Update{"round": c.round})
			return
		}
		c.phase = PhaseCompletion
		c.pushPhase(c.rules.Completion(c.round))
		c.schedule(c.cfg.CompletionHold, func() { c.solve(Update{"round": c.round}) })

	case success:
		c.round++
		c.rules.ClearInput()
		c.runCycle()

	case c.cfg.OnFailure == RetryInput:
		c.rules.ClearInput()
		c.enterInput()

	default:
		c.rules.ClearInput()
		c.runCycle()
	}
}

func (c *Choreography) pushPhase(fields Update) {
	u := Update{"round": c.round, "phase": c.phase}
	c.push(u.Merge(fields))
}

func (c *Choreography) view() Update {
	return c.rules.Render(c.phase, c.round).
		With("round", c.round).
		With("phase", c.phase).
		With("puzzle_solved", c.solved)
}
