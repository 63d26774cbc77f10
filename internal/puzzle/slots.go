package puzzle

import (
	"fmt"
	"strconv"
	"time"
)

// Slot placement statuses.
const (
	StatusStart = "start"
	StatusHalf  = "half"
	StatusWrong = "wrong"
	StatusGood  = "good"
)

// EmptyToken marks an empty slot on the wire.
const EmptyToken = -1

// SlotsConfig parameterizes a slot placement puzzle.
type SlotsConfig struct {
	// Solution maps each slot to the token it must hold. Its keys are the slots.
	Solution map[int]int
	// Grace is how long a correct assignment must stay unchanged.
	Grace time.Duration
}

// Slots implements the slot placement protocol.
type Slots struct {
	base
	cfg SlotsConfig

	tokens  map[int]int
	changes uint64
}

// NewSlots builds a slot placement puzzle.
func NewSlots(id int, env Env, cfg SlotsConfig) *Slots {
	s := &Slots{cfg: cfg, tokens: make(map[int]int, len(cfg.Solution))}
	s.init(id, env)
	return s
}

// Initialize implements Machine.
func (s *Slots) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.begin()
	s.empty()
	s.push(s.view())
}

// Reset empties every slot.
func (s *Slots) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return
	}
	s.invalidate()
	s.empty()
	s.push(s.view())
}

// Snapshot implements Machine.
func (s *Slots) Snapshot() Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewUpdate(s.id).Merge(s.view())
}

// HandleEvent takes "P9,<slot>,<token>"; token -1 empties the slot.
func (s *Slots) HandleEvent(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: expected slot and token", ErrMalformedInput)
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: slot %q", ErrMalformedInput, args[0])
	}
	token, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: token %q", ErrMalformedInput, args[1])
	}
	if _, ok := s.cfg.Solution[slot]; !ok {
		return fmt.Errorf("%w: slot %d", ErrInvalidTarget, slot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.solved {
		return ErrSolved
	}

	if token == EmptyToken {
		delete(s.tokens, slot)
	} else {
		s.tokens[slot] = token
	}
	s.changes++
	status := s.status()

	s.push(Update{
		"box_update": map[string]any{"box": slot, "token": s.token(slot)},
		"boxes":      s.boxes(),
		"status":     status,
	})

	if status == StatusGood {
		seq := s.changes
		s.schedule(s.cfg.Grace, func() {
			if seq != s.changes || s.status() != StatusGood {
				return
			}
			s.solve(Update{"status": StatusGood})
		})
	}
	return nil
}

func (s *Slots) empty() {
	clear(s.tokens)
	s.changes++
}

func (s *Slots) status() string {
	switch {
	case len(s.tokens) == 0:
		return StatusStart
	case len(s.tokens) < len(s.cfg.Solution):
		return StatusHalf
	}
	for slot, want := range s.cfg.Solution {
		if s.tokens[slot] != want {
			return StatusWrong
		}
	}
	return StatusGood
}

func (s *Slots) token(slot int) any {
	if t, ok := s.tokens[slot]; ok {
		return t
	}
	return nil
}

func (s *Slots) boxes() map[int]any {
	out := make(map[int]any, len(s.cfg.Solution))
	for slot := range s.cfg.Solution {
		out[slot] = s.token(slot)
	}
	return out
}

func (s *Slots) view() Update {
	return Update{
		"boxes":         s.boxes(),
		"status":        s.status(),
		"puzzle_solved": s.solved,
	}
}
