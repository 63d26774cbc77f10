package testutil

import (
	"slices"
	"sync"

	"github.com/dyluth/lair/internal/puzzle"
)

// RecordingSink is a puzzle.Sink that keeps every update it receives.
type RecordingSink struct {
	mu      sync.Mutex
	updates []puzzle.Update
}

// Push implements puzzle.Sink.
func (s *RecordingSink) Push(u puzzle.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, u)
}

// Updates returns a copy of everything pushed so far.
func (s *RecordingSink) Updates() []puzzle.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.updates)
}

// Count returns the number of updates pushed so far.
func (s *RecordingSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

// Last returns the most recent update, or nil.
func (s *RecordingSink) Last() puzzle.Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.updates) == 0 {
		return nil
	}
	return s.updates[len(s.updates)-1]
}

// With returns the updates that carry key.
func (s *RecordingSink) With(key string) []puzzle.Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []puzzle.Update
	for _, u := range s.updates {
		if _, ok := u[key]; ok {
			out = append(out, u)
		}
	}
	return out
}

// Clear forgets every recorded update.
func (s *RecordingSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = nil
}

// RecordingPublisher is a puzzle.Publisher that keeps every command.
type RecordingPublisher struct {
	mu       sync.Mutex
	commands []string
}

// Publish implements puzzle.Publisher.
func (p *RecordingPublisher) Publish(command string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, command)
}

// Commands returns a copy of everything published so far.
func (p *RecordingPublisher) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.commands)
}

// Count returns how many times command was published.
func (p *RecordingPublisher) Count(command string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, c := range p.commands {
		if c == command {
			n++
		}
	}
	return n
}

// Env bundles the doubles a machine test needs.
type Env struct {
	Clock     *FakeClock
	Sink      *RecordingSink
	Publisher *RecordingPublisher
	Active    *puzzle.Active
}

// NewEnv returns fresh doubles with a fixed seed.
func NewEnv() *Env {
	return &Env{
		Clock:     NewFakeClock(),
		Sink:      &RecordingSink{},
		Publisher: &RecordingPublisher{},
		Active:    &puzzle.Active{},
	}
}

// Puzzle returns a puzzle.Env wired to the doubles.
func (e *Env) Puzzle() puzzle.Env {
	return puzzle.Env{
		Sink:      e.Sink,
		Publisher: e.Publisher,
		Clock:     e.Clock,
		Active:    e.Active,
		Seed:      42,
	}
}
