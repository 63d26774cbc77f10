package devicebus

import "fmt"

// Channel naming
//
// Device hardware speaks on two fixed topics shared by every installation on the broker,
// so those names come from configuration and are not namespaced. Channels owned by the
// engine itself are namespaced by instance name so several rooms can share one Redis.
//
// Engine channel pattern: lair:{instance_name}:{stream}

const (
	// DefaultInboundTopic is the channel devices publish their events on.
	DefaultInboundTopic = "TO_FLASK"

	// DefaultOutboundTopic is the channel the engine publishes device commands on.
	DefaultOutboundTopic = "FROM_FLASK"
)

// UpdatesChannel returns the Pub/Sub channel that mirrors every observer update as JSON.
// Pattern: lair:{instance_name}:updates
func UpdatesChannel(instanceName string) string {
	return fmt.Sprintf("lair:%s:updates", instanceName)
}

// StartCommand returns the outbound command announcing that a puzzle became active.
func StartCommand(puzzleID int) string {
	return fmt.Sprintf("P%dStart", puzzleID)
}

// EndCommand returns the outbound command announcing that a puzzle was solved.
func EndCommand(puzzleID int) string {
	return fmt.Sprintf("P%dEnd", puzzleID)
}

// RoundCommand returns the outbound round-start marker used by round-based puzzles.
func RoundCommand(puzzleID, round int) string {
	return fmt.Sprintf("P%d_Round%d", puzzleID, round)
}
