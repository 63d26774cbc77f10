package catalog

import (
	"math/rand/v2"
	"time"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// quizRules: every question is a round that all players answer. One wrong
// answer draws a fresh set of questions and the streak starts over.
type quizRules struct {
	bank    []config.Question
	streak  int
	players int
	first   int
	chosen  []config.Question
}

// NewQuiz builds the quiz puzzle.
func NewQuiz(c *config.QuizPuzzle, env puzzle.Env) *puzzle.Aggregate {
	r := &quizRules{bank: c.Questions, streak: c.Streak, players: c.Players, first: c.FirstPlayer}
	return puzzle.NewAggregate(c.ID, env, puzzle.AggregateConfig{
		Actors:        c.Players,
		FirstActor:    c.FirstPlayer,
		Rounds:        c.Streak,
		ResultHold:    c.NextDelay,
		RetryDelay:    c.RetryDelay,
		Retry:         puzzle.RestartRun,
		SolveOnResult: true,
	}, r)
}

func (r *quizRules) Parse(args []string) (int, float64, error) {
	v, err := ints(args, 2)
	if err != nil {
		return 0, 0, err
	}
	return v[0], float64(v[1]), nil
}

func (r *quizRules) Restart(rng *rand.Rand) {
	n := min(r.streak, len(r.bank))
	r.chosen = make([]config.Question, n)
	for i, p := range rng.Perm(len(r.bank))[:n] {
		r.chosen[i] = r.bank[p]
	}
}

func (r *quizRules) question(round int) config.Question {
	return r.chosen[(round-1)%len(r.chosen)]
}

func (r *quizRules) Open(round int) puzzle.Update {
	return r.Render(round, nil)
}

func (r *quizRules) RoundCommand(int) string { return "" }

// Score counts wrong answers.
func (r *quizRules) Score(round int, value float64) float64 {
	if int(value) == r.question(round).Correct {
		return 0
	}
	return 1
}

func (r *quizRules) Limit(int) float64 { return 0 }

func (r *quizRules) Reported(round int, rep puzzle.Report, _ []puzzle.Report) puzzle.Update {
	return puzzle.Update{
		"player_answer": map[string]any{"player": rep.Actor, "answer": int(rep.Value)},
		"streak":        round - 1,
		"target":        r.streak,
	}
}

func (r *quizRules) Result(round int, reports []puzzle.Report, _ float64, success bool) puzzle.Update {
	answers := make(map[int]int, len(reports))
	for _, rep := range reports {
		answers[rep.Actor] = int(rep.Value)
	}
	streak := 0
	if success {
		streak = round
	}
	return puzzle.Update{
		"question_result": map[string]any{
			"success":        success,
			"correct_answer": r.question(round).Correct,
			"player_answers": answers,
		},
		"streak": streak,
		"target": r.streak,
	}
}

func (r *quizRules) Waiting(int, time.Duration, bool) puzzle.Update { return nil }

func (r *quizRules) Render(round int, reports []puzzle.Report) puzzle.Update {
	u := puzzle.Update{
		"streak":        max(round-1, 0),
		"target":        r.streak,
		"total_players": r.players,
	}
	if round < 1 || len(r.chosen) == 0 {
		return u
	}
	q := r.question(round)
	answered := make([]int, 0, len(reports))
	for _, rep := range reports {
		answered = append(answered, rep.Actor)
	}
	u["question"] = map[string]any{"id": q.ID, "q": q.Text, "answers": q.Answers}
	u["answered_players"] = answered
	return u
}
