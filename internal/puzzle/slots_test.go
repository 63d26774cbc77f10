package puzzle_test

import (
	"strconv"
	"testing"
	"time"

	"github.com/dyluth/lair/internal/puzzle"
	"github.com/dyluth/lair/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var threeSlots = map[int]int{0: 22, 1: 18, 2: 14}

func newSlots(env *testutil.Env) *puzzle.Slots {
	s := puzzle.NewSlots(9, env.Puzzle(), puzzle.SlotsConfig{Solution: threeSlots, Grace: 5 * time.Second})
	env.Active.Set(9)
	s.Initialize()
	return s
}

func place(t *testing.T, s *puzzle.Slots, slot, token int) {
	t.Helper()
	require.NoError(t, s.HandleEvent([]string{strconv.Itoa(slot), strconv.Itoa(token)}))
}

func TestSlotsStatusProgression(t *testing.T) {
	env := testutil.NewEnv()
	s := newSlots(env)

	assert.Equal(t, puzzle.StatusStart, s.Snapshot()["status"])

	place(t, s, 0, 22)
	assert.Equal(t, puzzle.StatusHalf, env.Sink.Last()["status"])
	assert.Equal(t, map[string]any{"box": 0, "token": 22}, env.Sink.Last()["box_update"])

	place(t, s, 1, 18)
	place(t, s, 2, 5)
	assert.Equal(t, puzzle.StatusWrong, env.Sink.Last()["status"])

	place(t, s, 2, puzzle.EmptyToken)
	last := env.Sink.Last()
	assert.Equal(t, puzzle.StatusHalf, last["status"])
	assert.Equal(t, map[int]any{0: 22, 1: 18, 2: nil}, last["boxes"])
}

func TestSlotsSolveAfterGrace(t *testing.T) {
	env := testutil.NewEnv()
	s := newSlots(env)

	place(t, s, 0, 22)
	place(t, s, 1, 18)
	place(t, s, 2, 14)
	assert.Equal(t, puzzle.StatusGood, env.Sink.Last()["status"])

	env.Clock.Advance(4 * time.Second)
	assert.Equal(t, false, s.Snapshot()["puzzle_solved"])

	env.Clock.Advance(time.Second)
	assert.Equal(t, true, s.Snapshot()["puzzle_solved"])
	assert.Equal(t, 1, env.Publisher.Count("P9End"))
	assert.ErrorIs(t, s.HandleEvent([]string{"0", "1"}), puzzle.ErrSolved)
}

func TestSlotsLateChangeCancelsGrace(t *testing.T) {
	env := testutil.NewEnv()
	s := newSlots(env)

	place(t, s, 0, 22)
	place(t, s, 1, 18)
	place(t, s, 2, 14)

	env.Clock.Advance(3 * time.Second)
	place(t, s, 1, 14)
	place(t, s, 1, 18)

	// the first grace period would end here; it was invalidated by the changes
	env.Clock.Advance(2 * time.Second)
	assert.Equal(t, false, s.Snapshot()["puzzle_solved"])

	env.Clock.Advance(3 * time.Second)
	assert.Equal(t, true, s.Snapshot()["puzzle_solved"])
	assert.Equal(t, 1, env.Publisher.Count("P9End"))
}

func TestSlotsRejectsBadInput(t *testing.T) {
	env := testutil.NewEnv()
	s := newSlots(env)

	assert.ErrorIs(t, s.HandleEvent([]string{"0"}), puzzle.ErrMalformedInput)
	assert.ErrorIs(t, s.HandleEvent([]string{"a", "1"}), puzzle.ErrMalformedInput)
	assert.ErrorIs(t, s.HandleEvent([]string{"7", "1"}), puzzle.ErrInvalidTarget)
}
