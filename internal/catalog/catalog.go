// Package catalog builds the installation's puzzles from lair.yml: it binds
// each configured puzzle block to the protocol machine that runs it and to
// the rules that supply its content.
package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// Build returns one machine per enabled puzzle, in ascending id order.
func Build(cfg *config.LairConfig, env puzzle.Env) ([]puzzle.Machine, error) {
	p := cfg.Puzzles
	if p.Sums == nil {
		return nil, fmt.Errorf("configuration has not been validated")
	}

	var machines []puzzle.Machine
	add := func(common config.Common, build func() puzzle.Machine) {
		if !common.Disabled {
			machines = append(machines, build())
		}
	}

	add(p.Sums.Common, func() puzzle.Machine { return NewSums(p.Sums, env) })
	add(p.Sequences.Common, func() puzzle.Machine { return NewSequences(p.Sequences, env) })
	add(p.Quiz.Common, func() puzzle.Machine { return NewQuiz(p.Quiz, env) })
	add(p.Music.Common, func() puzzle.Machine { return NewMusic(p.Music, env) })
	add(p.Timing.Common, func() puzzle.Machine { return NewTiming(p.Timing, env) })
	add(p.Power.Common, func() puzzle.Machine { return NewPower(p.Power, env) })
	add(p.Codes.Common, func() puzzle.Machine { return NewCodes(p.Codes, env) })
	add(p.Memory.Common, func() puzzle.Machine { return NewMemory(p.Memory, env) })
	add(p.Tokens.Common, func() puzzle.Machine { return NewTokens(p.Tokens, env) })

	seen := make(map[int]bool, len(machines))
	for _, m := range machines {
		if seen[m.ID()] {
			return nil, fmt.Errorf("duplicate puzzle id %d", m.ID())
		}
		seen[m.ID()] = true
	}
	slices.SortFunc(machines, func(a, b puzzle.Machine) int { return cmp.Compare(a.ID(), b.ID()) })
	return machines, nil
}

// NewPower builds the countdown-with-sabotage puzzle.
func NewPower(c *config.PowerPuzzle, env puzzle.Env) *puzzle.Countdown {
	return puzzle.NewCountdown(c.ID, env, puzzle.CountdownConfig{
		Duration:     c.Duration,
		Tick:         c.Tick,
		ReportEvery:  c.ReportEvery,
		RestartDelay: c.RestartDelay,
		Message:      c.Message,
	})
}

// NewTokens builds the slot placement puzzle.
func NewTokens(c *config.TokensPuzzle, env puzzle.Env) *puzzle.Slots {
	return puzzle.NewSlots(c.ID, env, puzzle.SlotsConfig{Solution: c.Solution, Grace: c.Grace})
}

// ints parses the first n arguments as integers.
func ints(args []string, n int) ([]int, error) {
	if len(args) < n {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", puzzle.ErrMalformedInput, n, len(args))
	}
	out := make([]int, n)
	for i := range n {
		v, err := strconv.Atoi(args[i])
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", puzzle.ErrMalformedInput, i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", puzzle.ErrMalformedInput, reason)
}
