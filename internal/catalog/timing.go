package catalog

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
	"github.com/dyluth/lair/pkg/devicebus"
)

// timingRules: each player stops a timer as close to the round objective as
// possible and reports the signed error in seconds. The round passes when
// the summed absolute errors stay within the round limit.
type timingRules struct {
	id         int
	limits     []float64
	objectives []float64
}

// NewTiming builds the timing puzzle.
func NewTiming(c *config.TimingPuzzle, env puzzle.Env) *puzzle.Aggregate {
	r := &timingRules{id: c.ID, limits: c.Limits, objectives: c.Objectives}
	return puzzle.NewAggregate(c.ID, env, puzzle.AggregateConfig{
		Actors:         c.Players,
		FirstActor:     c.FirstPlayer,
		Rounds:         len(c.Limits),
		StartDelay:     c.StartDelay,
		EvalDelay:      c.EvalDelay,
		ResultHold:     c.ResultHold,
		NextRoundDelay: c.NextRoundDelay,
		RetryDelay:     c.RetryDelay,
		Retry:          puzzle.RetryRound,
		EndCommand:     c.EndCommand,
	}, r)
}

func (r *timingRules) Parse(args []string) (int, float64, error) {
	v, err := ints(args, 1)
	if err != nil {
		return 0, 0, err
	}
	if len(args) < 2 {
		return 0, 0, malformed("missing time")
	}
	t, err := strconv.ParseFloat(args[1], 64)
	if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, 0, malformed(fmt.Sprintf("time %q", args[1]))
	}
	return v[0], t, nil
}

func (r *timingRules) Restart(*rand.Rand) {}

func (r *timingRules) Open(round int) puzzle.Update {
	return puzzle.Update{"objective": r.objective(round), "limit": r.Limit(round)}
}

func (r *timingRules) RoundCommand(round int) string {
	return devicebus.RoundCommand(r.id, round)
}

func (r *timingRules) Score(_ int, value float64) float64 { return math.Abs(value) }

func (r *timingRules) Limit(round int) float64 { return r.limits[round-1] }

func (r *timingRules) Reported(round int, rep puzzle.Report, reports []puzzle.Report) puzzle.Update {
	return puzzle.Update{
		"player_time": map[string]any{"player": rep.Actor, "time": rep.Value},
		"times":       times(reports),
		"total":       total(reports),
		"limit":       r.Limit(round),
	}
}

func (r *timingRules) Result(round int, _ []puzzle.Report, sum float64, success bool) puzzle.Update {
	return puzzle.Update{
		"round_result": map[string]any{"success": success, "total": sum, "limit": r.Limit(round)},
	}
}

func (r *timingRules) Waiting(round int, delay time.Duration, retry bool) puzzle.Update {
	secs := int(delay / time.Second)
	msg := fmt.Sprintf("Round %d starts in %d seconds", round, secs)
	if retry {
		msg = fmt.Sprintf("Round %d restarts in %d seconds", round, secs)
	}
	return puzzle.Update{"countdown_message": msg, "waiting_seconds": secs}
}

func (r *timingRules) Render(round int, reports []puzzle.Report) puzzle.Update {
	u := puzzle.Update{
		"times":     times(reports),
		"total":     total(reports),
		"limit":     nil,
		"objective": nil,
	}
	if round >= 1 {
		u["limit"] = r.Limit(round)
		u["objective"] = r.objective(round)
	}
	return u
}

func (r *timingRules) objective(round int) any {
	if round < 1 || round > len(r.objectives) {
		return nil
	}
	return r.objectives[round-1]
}

func times(reports []puzzle.Report) []map[string]any {
	out := make([]map[string]any, len(reports))
	for i, rep := range reports {
		out[i] = map[string]any{"player": rep.Actor, "time": rep.Value}
	}
	return out
}

func total(reports []puzzle.Report) float64 {
	var sum float64
	for _, rep := range reports {
		sum += math.Abs(rep.Value)
	}
	return sum
}
