package catalog

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// Memory phases before input.
const (
	phaseNumbers = "numbers"
	phaseTokens  = "tokens"
)

// memorySet is one revealed arrangement: a symbol per box and a colour per symbol.
type memorySet struct {
	symbols []string
	colors  map[string]string
}

// memoryRules: the boxes show their token numbers, then one or more
// symbol/colour sets. Players rebuild every set on the token boxes, one
// entry per set, in the order the sets were shown.
type memoryRules struct {
	cfg *config.MemoryPuzzle

	sets    []memorySet
	symbols map[int][]string // box → entered symbols
	colors  map[int][]string // box → entered colours
}

// NewMemory builds the memory puzzle.
func NewMemory(c *config.MemoryPuzzle, env puzzle.Env) *puzzle.Choreography {
	r := &memoryRules{cfg: c, symbols: make(map[int][]string), colors: make(map[int][]string)}
	return puzzle.NewChoreography(c.ID, env, puzzle.ChoreographyConfig{
		Rounds:     c.Rounds,
		EvalDelay:  c.EvalDelay,
		ResultHold: c.ResultHold,
		OnFailure:  puzzle.Replay,
	}, r)
}

func (r *memoryRules) boxes() int { return len(r.cfg.TokenNumbers) }

// Script draws round many sets. Round 1 shows its only set for FirstSetHold,
// later rounds show each set for SetHold.
func (r *memoryRules) Script(round int, rng *rand.Rand) []puzzle.Step {
	r.sets = make([]memorySet, round)
	for i := range r.sets {
		r.sets[i] = r.draw(rng)
	}

	steps := []puzzle.Step{
		{Phase: puzzle.PhaseIdle, Hold: r.cfg.ClearHold, Fields: puzzle.Update{"clear": true}},
		{Phase: phaseNumbers, Hold: r.cfg.NumbersHold, Fields: puzzle.Update{"token_numbers": slices.Clone(r.cfg.TokenNumbers)}},
	}
	hold := r.cfg.SetHold
	if round == 1 {
		hold = r.cfg.FirstSetHold
	}
	for i, set := range r.sets {
		steps = append(steps, puzzle.Step{Phase: phaseTokens, Hold: hold, Fields: set.fields().With("part", i+1)})
	}
	return steps
}

func (r *memoryRules) draw(rng *rand.Rand) memorySet {
	perm := rng.Perm(len(r.cfg.Symbols))[:r.boxes()]
	set := memorySet{symbols: make([]string, len(perm)), colors: make(map[string]string, len(perm))}
	for i, p := range perm {
		symbol := r.cfg.Symbols[p]
		set.symbols[i] = symbol
		set.colors[symbol] = r.cfg.Colors[rng.IntN(len(r.cfg.Colors))]
	}
	return set
}

func (s memorySet) fields() puzzle.Update {
	return puzzle.Update{"symbols": slices.Clone(s.symbols), "colors": maps.Clone(s.colors)}
}

func (r *memoryRules) InputFields(int) puzzle.Update {
	return puzzle.Update{"clear": true, "symbols": r.firstSymbols()}
}

// Accept takes "<symbol code>,<token number>,<colour code>".
func (r *memoryRules) Accept(phase string, round int, args []string) (puzzle.Outcome, error) {
	v, err := ints(args, 3)
	if err != nil {
		return puzzle.Outcome{}, err
	}
	if phase != puzzle.PhaseInput {
		return puzzle.Outcome{}, fmt.Errorf("%w: %s", puzzle.ErrInputBlocked, phase)
	}

	symbolCode, token, colorCode := v[0], v[1], v[2]
	if symbolCode < 0 || symbolCode >= len(r.cfg.Symbols) {
		return puzzle.Outcome{}, fmt.Errorf("%w: symbol %d", puzzle.ErrInvalidTarget, symbolCode)
	}
	if colorCode < 0 || colorCode >= len(r.cfg.Colors) {
		return puzzle.Outcome{}, fmt.Errorf("%w: colour %d", puzzle.ErrInvalidTarget, colorCode)
	}
	box := slices.Index(r.cfg.TokenNumbers, token)
	if box < 0 {
		return puzzle.Outcome{}, fmt.Errorf("%w: token %d", puzzle.ErrInvalidTarget, token)
	}
	required := len(r.sets)
	if len(r.colors[box]) >= required {
		return puzzle.Outcome{}, fmt.Errorf("%w: box %d is full", puzzle.ErrDuplicateSubmission, box)
	}

	symbol, color := r.cfg.Symbols[symbolCode], r.cfg.Colors[colorCode]
	r.symbols[box] = append(r.symbols[box], symbol)
	r.colors[box] = append(r.colors[box], color)

	return puzzle.Outcome{
		Fields: puzzle.Update{"input_update": map[string]any{"box": box, "symbol": symbol, "color": color}},
		Done:   r.complete(required),
	}, nil
}

func (r *memoryRules) complete(required int) bool {
	for box := range r.boxes() {
		if len(r.colors[box]) < required {
			return false
		}
	}
	return true
}

// Evaluate checks entry i of every box against set i.
func (r *memoryRules) Evaluate(int) (bool, puzzle.Update) {
	results := make(map[int]bool, r.boxes())
	success := true
	for box := range r.boxes() {
		ok := true
		for i, set := range r.sets {
			want := set.symbols[box]
			if i >= len(r.symbols[box]) || r.symbols[box][i] != want || r.colors[box][i] != set.colors[want] {
				ok = false
				break
			}
		}
		results[box] = ok
		success = success && ok
	}
	return success, puzzle.Update{"input_result": map[string]any{"success": success, "box_results": results}}
}

func (r *memoryRules) ClearInput() {
	clear(r.symbols)
	clear(r.colors)
}

func (r *memoryRules) Completion(int) puzzle.Update { return nil }

func (r *memoryRules) Render(phase string, _ int) puzzle.Update {
	switch phase {
	case phaseNumbers:
		return puzzle.Update{"token_numbers": slices.Clone(r.cfg.TokenNumbers)}
	case phaseTokens:
		if len(r.sets) > 0 {
			return r.sets[0].fields()
		}
	case puzzle.PhaseInput:
		return puzzle.Update{
			"clear":         true,
			"symbols":       r.firstSymbols(),
			"input_symbols": latest(r.symbols),
			"input_colors":  latest(r.colors),
		}
	}
	return puzzle.Update{"clear": true}
}

func (r *memoryRules) firstSymbols() []string {
	if len(r.sets) == 0 {
		return []string{}
	}
	return slices.Clone(r.sets[0].symbols)
}

func latest(entries map[int][]string) map[int]string {
	out := make(map[int]string, len(entries))
	for box, list := range entries {
		if len(list) > 0 {
			out[box] = list[len(list)-1]
		}
	}
	return out
}
