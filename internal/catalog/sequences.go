package catalog

import (
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// sequencesRules: every player enters a fixed symbol sequence on their own
// device; a wrong symbol sends every unfinished player back to the start.
type sequencesRules struct {
	players   []int
	sequences map[int][]string
}

// NewSequences builds the symbol sequences puzzle.
func NewSequences(c *config.SequencesPuzzle, env puzzle.Env) *puzzle.Match {
	r := &sequencesRules{sequences: make(map[int][]string, len(c.Sequences))}
	for player, seq := range c.Sequences {
		r.players = append(r.players, player)
		steps := make([]string, len(seq))
		for i, symbol := range seq {
			steps[i] = strconv.Itoa(symbol)
		}
		r.sequences[player] = steps
	}
	slices.Sort(r.players)

	cfg := puzzle.MatchConfig{Rounds: 1, Failure: puzzle.FailResetProgress}
	if a := c.Alarm; a != nil {
		remap := make(map[string]string, len(a.Remap))
		for from, to := range a.Remap {
			remap[strconv.Itoa(from)] = strconv.Itoa(to)
		}
		cfg.Alarm = &puzzle.AlarmCycle{
			Remap:      remap,
			EnterAfter: puzzle.Span{Min: a.EnterAfterMin, Max: a.EnterAfterMax},
			Duration:   puzzle.Span{Min: a.DurationMin, Max: a.DurationMax},
			Transition: a.Transition,
			EnterCue:   a.EnterCue,
			ExitCue:    a.ExitCue,
		}
	}
	return puzzle.NewMatch(c.ID, env, cfg, r)
}

func (r *sequencesRules) Draw(int, *rand.Rand) []puzzle.Unit {
	units := make([]puzzle.Unit, len(r.players))
	for i, p := range r.players {
		units[i] = puzzle.Unit{Key: strconv.Itoa(p), Steps: r.sequences[p]}
	}
	return units
}

func (r *sequencesRules) Parse(args []string) (puzzle.Candidate, error) {
	v, err := ints(args, 2)
	if err != nil {
		return puzzle.Candidate{}, err
	}
	return puzzle.Candidate{Key: strconv.Itoa(v[0]), Value: strconv.Itoa(v[1])}, nil
}

func (r *sequencesRules) Render(units []puzzle.Unit) puzzle.Update {
	players := make([]map[string]any, len(units))
	for i, u := range units {
		players[i] = progress(u)
	}
	return puzzle.Update{"players": players}
}

func (r *sequencesRules) Advanced(units []puzzle.Unit, i int, _ puzzle.Candidate) puzzle.Update {
	return puzzle.Update{"player_update": progress(units[i])}
}

func (r *sequencesRules) Rejected(_ []puzzle.Unit, c puzzle.Candidate, expected string) puzzle.Update {
	player, _ := strconv.Atoi(c.Key)
	symbol, _ := strconv.Atoi(c.Value)
	reset := map[string]any{"player": player, "symbol": symbol}
	if want, err := strconv.Atoi(expected); err == nil {
		reset["expected"] = want
	}
	return puzzle.Update{"error_reset": reset}
}

func progress(u puzzle.Unit) map[string]any {
	player, _ := strconv.Atoi(u.Key)
	return map[string]any{"player": player, "progress": u.Progress, "total": len(u.Steps)}
}
