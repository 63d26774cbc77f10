package catalog

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// sumsRules: every round shows a set of results drawn from the pool, and a
// device event "a,b" solves the first open result equal to a+b.
type sumsRules struct {
	pool  []int
	sizes []int
}

// NewSums builds the sums puzzle.
func NewSums(c *config.SumsPuzzle, env puzzle.Env) *puzzle.Match {
	pool := slices.Clone(c.Pool)
	slices.Sort(pool)
	pool = slices.Compact(pool)

	return puzzle.NewMatch(c.ID, env, puzzle.MatchConfig{
		Rounds:       len(c.RoundSizes),
		Failure:      puzzle.FailCooldown,
		Cooldown:     c.Cooldown,
		TimeoutGrace: c.TimeoutGrace,
		Timed:        true,
	}, &sumsRules{pool: pool, sizes: slices.Clone(c.RoundSizes)})
}

func (r *sumsRules) Draw(round int, rng *rand.Rand) []puzzle.Unit {
	size := min(r.sizes[round-1], len(r.pool))
	perm := rng.Perm(len(r.pool))[:size]

	units := make([]puzzle.Unit, size)
	for i, p := range perm {
		units[i] = puzzle.Unit{
			Key:   strconv.Itoa(i + 1),
			Steps: []string{strconv.Itoa(r.pool[p])},
		}
	}
	return units
}

func (r *sumsRules) Parse(args []string) (puzzle.Candidate, error) {
	v, err := ints(args, 2)
	if err != nil {
		return puzzle.Candidate{}, err
	}
	sum := v[0] + v[1]
	return puzzle.Candidate{
		Value: strconv.Itoa(sum),
		Label: fmt.Sprintf("%d + %d = %d", v[0], v[1], sum),
	}, nil
}

// Render lists the operations as [result, index, "Y"|"N"].
func (r *sumsRules) Render(units []puzzle.Unit) puzzle.Update {
	ops := make([][]any, len(units))
	for i, u := range units {
		result, _ := strconv.Atoi(u.Steps[0])
		flag := "N"
		if u.Matched() {
			flag = "Y"
		}
		ops[i] = []any{result, i + 1, flag}
	}
	return puzzle.Update{"operations": ops}
}

func (r *sumsRules) Advanced(units []puzzle.Unit, _ int, c puzzle.Candidate) puzzle.Update {
	return r.Render(units).With("solved", r.result(c))
}

func (r *sumsRules) Rejected(_ []puzzle.Unit, c puzzle.Candidate, _ string) puzzle.Update {
	return puzzle.Update{"incorrect": r.result(c)}
}

func (r *sumsRules) result(c puzzle.Candidate) map[string]any {
	result, _ := strconv.Atoi(c.Value)
	return map[string]any{"result": result, "text": c.Label}
}
