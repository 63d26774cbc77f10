package catalog

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// Music phases before input.
const (
	phaseLeadIn = "lead_in"
	phaseSample = "sample"
)

// Music device buttons.
const (
	buttonPlay        = 0
	buttonStopRecord  = 1
	buttonClear       = 2
	buttonStartRecord = 3
	buttonSkipSample  = 4
)

const historyLimit = 25

// musicRules: players listen to a sample, then rebuild it by recording the
// right tracks in the right order.
type musicRules struct {
	rounds []config.MusicRound
	leadIn time.Duration

	storing bool
	played  []string
	history []string
}

// NewMusic builds the music puzzle.
func NewMusic(c *config.MusicPuzzle, env puzzle.Env) *puzzle.Choreography {
	return puzzle.NewChoreography(c.ID, env, puzzle.ChoreographyConfig{
		Rounds:         len(c.Rounds),
		EvalDelay:      c.EvalDelay,
		ResultHold:     c.ResultHold,
		CompletionHold: c.CompletionHold,
		OnFailure:      puzzle.RetryInput,
	}, &musicRules{rounds: c.Rounds, leadIn: c.LeadIn})
}

func (r *musicRules) round(n int) config.MusicRound {
	return r.rounds[n-1]
}

func (r *musicRules) Script(round int, _ *rand.Rand) []puzzle.Step {
	sample := puzzle.Update{
		"playing_sample": true,
		"listening":      true,
		"sample_song":    map[string]any{"url": r.round(round).Sample},
	}
	if round > 1 {
		sample["song_completed"] = true
	}
	steps := []puzzle.Step{{Phase: phaseSample, Hold: r.round(round).SampleDuration, Fields: r.status(round).Merge(sample)}}

	if round == 1 {
		r.history = nil
	}
	if round == 1 && r.leadIn > 0 {
		lead := puzzle.Step{Phase: phaseLeadIn, Hold: r.leadIn, Fields: r.status(round)}
		steps = append([]puzzle.Step{lead}, steps...)
	}
	return steps
}

func (r *musicRules) InputFields(round int) puzzle.Update {
	return r.status(round).With("playing_sample", false)
}

func (r *musicRules) Accept(phase string, round int, args []string) (puzzle.Outcome, error) {
	if len(args) < 1 {
		return puzzle.Outcome{}, malformed("missing button")
	}
	button, err := strconv.Atoi(args[0])
	if err != nil {
		return puzzle.Outcome{}, malformed(fmt.Sprintf("button %q", args[0]))
	}

	if button == buttonSkipSample {
		if phase != phaseSample {
			return puzzle.Outcome{}, nil
		}
		return puzzle.Outcome{Skip: true}, nil
	}
	if phase != puzzle.PhaseInput {
		return puzzle.Outcome{}, fmt.Errorf("%w: %s", puzzle.ErrInputBlocked, phase)
	}

	switch button {
	case buttonStartRecord:
		r.storing = true
		r.played = nil
		return puzzle.Outcome{Fields: r.status(round)}, nil

	case buttonStopRecord:
		r.storing = false
		return puzzle.Outcome{Fields: r.status(round)}, nil

	case buttonClear:
		r.played = nil
		return puzzle.Outcome{Fields: r.status(round).With("reset_attempt", true)}, nil

	case buttonPlay:
		return r.play(round, args)
	}
	return puzzle.Outcome{}, fmt.Errorf("%w: button %d", puzzle.ErrInvalidTarget, button)
}

func (r *musicRules) play(round int, args []string) (puzzle.Outcome, error) {
	song := 0
	if len(args) >= 2 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return puzzle.Outcome{}, malformed(fmt.Sprintf("song %q", args[1]))
		}
		song = v
	}
	current := r.round(round)
	file, ok := current.Tracks[song]
	if !ok {
		return puzzle.Outcome{}, fmt.Errorf("%w: song %d", puzzle.ErrInvalidTarget, song)
	}

	code := strconv.Itoa(song)
	r.history = append(r.history, code)
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
	if r.storing && len(r.played) < len(current.Order) {
		r.played = append(r.played, code)
	}

	fields := r.status(round).With("play", map[string]any{"track": code, "code": song, "url": file})
	return puzzle.Outcome{
		Fields: fields,
		Done:   r.storing && len(r.played) >= len(current.Order),
	}, nil
}

func (r *musicRules) Evaluate(round int) (bool, puzzle.Update) {
	ok := slices.Equal(r.played, r.order(round))
	return ok, puzzle.Update{"sequence_correct": ok}
}

func (r *musicRules) ClearInput() {
	r.storing = false
	r.played = nil
}

func (r *musicRules) Completion(round int) puzzle.Update {
	return puzzle.Update{"show_completion": true, "streak": round, "total_required": len(r.rounds)}
}

func (r *musicRules) Render(phase string, round int) puzzle.Update {
	u := r.status(round).
		With("history", slices.Clone(r.history)).
		With("playing_sample", phase == phaseSample)
	if phase == phaseSample {
		u["sample_song"] = map[string]any{"url": r.round(round).Sample}
	}
	return u
}

func (r *musicRules) order(round int) []string {
	order := r.round(round).Order
	out := make([]string, len(order))
	for i, track := range order {
		out[i] = strconv.Itoa(track)
	}
	return out
}

func (r *musicRules) status(round int) puzzle.Update {
	played := slices.Clone(r.played)
	if played == nil {
		played = []string{}
	}
	return puzzle.Update{
		"streak":           round - 1,
		"total_required":   len(r.rounds),
		"storing":          r.storing,
		"current_progress": len(r.played),
		"played_sequence":  played,
	}
}
