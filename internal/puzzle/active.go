package puzzle

import "sync/atomic"

// Active holds the id of the puzzle currently receiving device events.
// Zero means no puzzle is active. The engine writes it; scheduled tasks read
// it to detect that their puzzle was switched away from.
type Active struct {
	id atomic.Int64
}

// Set marks id as active and returns the previously active id.
func (a *Active) Set(id int) int {
	return int(a.id.Swap(int64(id)))
}

// Clear deactivates whichever puzzle is active and returns its id.
func (a *Active) Clear() int {
	return int(a.id.Swap(0))
}

// Get returns the active id, or 0.
func (a *Active) Get() int {
	return int(a.id.Load())
}

// Is reports whether id is the active puzzle.
func (a *Active) Is(id int) bool {
	return id != 0 && a.Get() == id
}
