package puzzle

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Unit is one target of a match puzzle: a sum to find, a player's symbol
// sequence, a box code. It is matched once every step has been entered.
type Unit struct {
	Key      string
	Steps    []string
	Progress int
}

// Matched reports whether every step of u has been entered.
func (u Unit) Matched() bool {
	return u.Progress >= len(u.Steps)
}

// Candidate is one parsed submission. An empty Key offers Value to every open unit.
type Candidate struct {
	Key   string
	Value string
	Label string
}

// FailurePolicy selects what a wrong candidate does.
type FailurePolicy int

const (
	// FailCooldown blocks input for the cool-down, then redraws the current round.
	FailCooldown FailurePolicy = iota
	// FailResetProgress drops the progress of every unit that is not yet matched.
	FailResetProgress
	// FailIgnore leaves the state untouched.
	FailIgnore
)

// MatchRules supplies the content of a match puzzle. Every method is called
// with the puzzle lock held. Returned updates must not alias rule or unit state.
type MatchRules interface {
	// Draw returns the units of a round (1-based).
	Draw(round int, rng *rand.Rand) []Unit
	// Parse turns event arguments into a candidate.
	Parse(args []string) (Candidate, error)
	// Render returns the observer fields describing the units.
	Render(units []Unit) Update
	// Advanced returns the fields pushed when units[i] took a step.
	Advanced(units []Unit, i int, c Candidate) Update
	// Rejected returns the fields pushed for a wrong candidate.
	// expected is the step the addressed unit wanted, or "" when no unit was addressed.
	Rejected(units []Unit, c Candidate, expected string) Update
}

// AlarmCycle periodically swaps the expected symbols through Remap. Entering
// and leaving alarm mode each play a cue and block input for Transition.
type AlarmCycle struct {
	Remap      map[string]string
	EnterAfter Span
	Duration   Span
	Transition time.Duration
	EnterCue   string
	ExitCue    string
}

// MatchConfig parameterizes a match puzzle.
type MatchConfig struct {
	Rounds   int
	Failure  FailurePolicy
	Cooldown time.Duration

	// TimeoutGrace enables the timer-expired override: input is blocked for
	// the grace period, then the current round is redrawn. Zero keeps the default.
	TimeoutGrace time.Duration

	// Timed puzzles ask observers to restart their countdown whenever a
	// round is (re)drawn.
	Timed bool

	Alarm *AlarmCycle
}

// Match implements the match-to-target protocol.
type Match struct {
	base
	cfg   MatchConfig
	rules MatchRules

	round   int
	units   []Unit
	blocked bool
	alarm   bool
}

// NewMatch builds a match puzzle.
func NewMatch(id int, env Env, cfg MatchConfig, rules MatchRules) *Match {
	if cfg.Rounds < 1 {
		cfg.Rounds = 1
	}
	m := &Match{cfg: cfg, rules: rules}
	m.init(id, env)
	m.timed = cfg.Timed
	return m
}

// Initialize implements Machine.
func (m *Match) Initialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.begin()
	m.restart()
	m.push(m.view())
}

// Reset starts over from round 1.
func (m *Match) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.solved {
		return
	}
	m.invalidate()
	m.restart()
	m.push(m.withTimer(m.view()))
}

// OnTimeout implements TimeoutHandler.
func (m *Match) OnTimeout() bool {
	if m.cfg.TimeoutGrace <= 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.solved || m.blocked {
		return true
	}
	m.blocked = true
	m.push(Update{"timed_out": true, "round": m.round})
	m.schedule(m.cfg.TimeoutGrace, func() {
		m.blocked = false
		m.units = m.rules.Draw(m.round, m.rng)
		m.push(m.withTimer(m.roundFields()))
	})
	return true
}

// Snapshot implements Machine.
func (m *Match) Snapshot() Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NewUpdate(m.id).Merge(m.view())
}

// HandleEvent implements Machine.
func (m *Match) HandleEvent(args []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.solved {
		return ErrSolved
	}
	c, err := m.rules.Parse(args)
	if err != nil {
		return err
	}
	if m.blocked {
		return ErrInputBlocked
	}
	return m.apply(c)
}

func (m *Match) restart() {
	m.round = 1
	m.units = m.rules.Draw(1, m.rng)
	m.blocked = false
	m.alarm = false
	m.armAlarm()
}

func (m *Match) apply(c Candidate) error {
	for i := range m.units {
		u := &m.units[i]
		if c.Key != "" && u.Key != c.Key {
			continue
		}
		if u.Matched() {
			if c.Key != "" {
				return fmt.Errorf("%w: unit %s already matched", ErrDuplicateSubmission, c.Key)
			}
			continue
		}
		want := m.expected(u)
		if want == c.Value {
			m.advance(i, c)
			return nil
		}
		if c.Key != "" {
			m.fail(c, want)
			return nil
		}
	}
	if c.Key != "" {
		return fmt.Errorf("%w: unit %s", ErrInvalidTarget, c.Key)
	}
	m.fail(c, "")
	return nil
}

func (m *Match) expected(u *Unit) string {
	step := u.Steps[u.Progress]
	if m.alarm && m.cfg.Alarm != nil {
		if mapped, ok := m.cfg.Alarm.Remap[step]; ok {
			return mapped
		}
	}
	return step
}

func (m *Match) advance(i int, c Candidate) {
	m.units[i].Progress++
	m.push(m.rules.Advanced(m.units, i, c).With("round", m.round))

	for _, u := range m.units {
		if !u.Matched() {
			return
		}
	}

	if m.round >= m.cfg.Rounds {
		m.solve(m.roundFields())
		return
	}
	m.round++
	m.units = m.rules.Draw(m.round, m.rng)
	m.push(m.withTimer(m.roundFields().With("round_start", true)))
}

func (m *Match) fail(c Candidate, expected string) {
	switch m.cfg.Failure {
	case FailIgnore:
		return

	case FailResetProgress:
		for i := range m.units {
			if !m.units[i].Matched() {
				m.units[i].Progress = 0
			}
		}
		m.push(m.rules.Rejected(m.units, c, expected).Merge(m.roundFields()))

	case FailCooldown:
		m.blocked = true
		m.push(m.rules.Rejected(m.units, c, expected).Merge(m.roundFields()))
		m.schedule(m.cfg.Cooldown, func() {
			m.blocked = false
			m.units = m.rules.Draw(m.round, m.rng)
			m.push(m.withTimer(m.roundFields()))
		})
	}
}

func (m *Match) armAlarm() {
	a := m.cfg.Alarm
	if a == nil {
		return
	}
	m.schedule(a.EnterAfter.pick(m.rng), func() {
		m.blocked = true
		m.push(Update{"play_alarm_sound": map[string]any{"cue": a.EnterCue}})
		m.schedule(a.Transition, func() {
			m.alarm = true
			m.blocked = false
			m.push(Update{"alarm_mode": true})
			m.schedule(a.Duration.pick(m.rng), m.leaveAlarm)
		})
	})
}

func (m *Match) leaveAlarm() {
	a := m.cfg.Alarm
	m.blocked = true
	m.push(Update{"play_normal_sound": map[string]any{"cue": a.ExitCue}})
	m.schedule(a.Transition, func() {
		m.alarm = false
		m.blocked = false
		m.push(Update{"alarm_mode": false})
		m.armAlarm()
	})
}

func (m *Match) roundFields() Update {
	return m.rules.Render(m.units).With("round", m.round)
}

func (m *Match) view() Update {
	u := m.roundFields().With("puzzle_solved", m.solved)
	if m.cfg.Alarm != nil {
		u["alarm_mode"] = m.alarm
	}
	return u
}

func (m *Match) withTimer(u Update) Update {
	if m.timed {
		u["start_timer"] = true
	}
	return u
}
