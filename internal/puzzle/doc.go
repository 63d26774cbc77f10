// Package puzzle implements the puzzle state machines and the five protocols
// they are built from.
//
// # Protocols
//
//   - Match: candidates are checked against drawn units (sums, symbol
//     sequences, box codes); matching every unit advances the round.
//   - Aggregate: a fixed set of actors each report one value per round; the
//     round passes when the summed score is within the round's limit.
//   - Choreography: timed reveal phases followed by an input phase and a
//     delayed evaluation.
//   - Countdown: a ticking countdown that interrupts pause and restart.
//   - Slots: addressable slots that must hold a target assignment for a grace period.
//
// Concrete puzzles plug content into a protocol through its rules interface
// and config struct; see the catalog package.
//
// # Concurrency
//
// Each machine owns one mutex that guards all of its fields. Delays are
// scheduled with the Env's Clock. A scheduled callback takes the lock and
// runs only if the machine's generation is unchanged, the activation is not
// solved, and the machine is still the active puzzle. Initialize, Reset and
// solving bump the generation, so callbacks from an earlier activation are
// skipped without any bookkeeping by the caller.
//
// Updates are pushed to the Sink and commands sent to the Publisher while the
// lock is held. Both must therefore return without blocking.
package puzzle
