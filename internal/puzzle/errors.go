package puzzle

import "errors"

// Event rejection reasons. HandleEvent wraps one of these so callers can
// classify the drop with errors.Is. None of them changes puzzle state.
var (
	// ErrMalformedInput means the arguments could not be parsed or are out of range.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidTarget means the event addressed an unknown actor, slot or unit.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrDuplicateSubmission means the actor or unit already reported in this round.
	ErrDuplicateSubmission = errors.New("duplicate submission")

	// ErrInputBlocked means the puzzle is in a cool-down or a phase that takes no input.
	ErrInputBlocked = errors.New("input blocked")

	// ErrSolved means the puzzle already reached its terminal state.
	ErrSolved = errors.New("puzzle already solved")
)
