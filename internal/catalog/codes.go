package catalog

import (
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/dyluth/lair/internal/config"
	"github.com/dyluth/lair/internal/puzzle"
)

// codesRules: every box opens with its own code. Codes are compared as
// strings so leading zeros count.
type codesRules struct {
	boxes []int
	codes map[int]string
}

// NewCodes builds the box codes puzzle.
func NewCodes(c *config.CodesPuzzle, env puzzle.Env) *puzzle.Match {
	r := &codesRules{codes: c.Codes}
	for box := range c.Codes {
		r.boxes = append(r.boxes, box)
	}
	slices.Sort(r.boxes)
	return puzzle.NewMatch(c.ID, env, puzzle.MatchConfig{Rounds: 1, Failure: puzzle.FailIgnore}, r)
}

func (r *codesRules) Draw(int, *rand.Rand) []puzzle.Unit {
	units := make([]puzzle.Unit, len(r.boxes))
	for i, box := range r.boxes {
		units[i] = puzzle.Unit{Key: strconv.Itoa(box), Steps: []string{r.codes[box]}}
	}
	return units
}

func (r *codesRules) Parse(args []string) (puzzle.Candidate, error) {
	v, err := ints(args, 1)
	if err != nil {
		return puzzle.Candidate{}, err
	}
	if len(args) < 2 {
		return puzzle.Candidate{}, malformed("missing code")
	}
	return puzzle.Candidate{Key: strconv.Itoa(v[0]), Value: args[1]}, nil
}

func (r *codesRules) Render(units []puzzle.Unit) puzzle.Update {
	return puzzle.Update{"solved_boxes": solvedBoxes(units)}
}

func (r *codesRules) Advanced(units []puzzle.Unit, i int, _ puzzle.Candidate) puzzle.Update {
	box, _ := strconv.Atoi(units[i].Key)
	return puzzle.Update{"solved_box": box, "solved_boxes": solvedBoxes(units)}
}

func (r *codesRules) Rejected([]puzzle.Unit, puzzle.Candidate, string) puzzle.Update {
	return puzzle.Update{}
}

func solvedBoxes(units []puzzle.Unit) []int {
	boxes := []int{}
	for _, u := range units {
		if u.Matched() {
			box, _ := strconv.Atoi(u.Key)
			boxes = append(boxes, box)
		}
	}
	return boxes
}
