package devicebus

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedEvent is returned when a device payload does not follow the
// P<id><suffix?>,<arg>,... shape.
var ErrMalformedEvent = errors.New("malformed device event")

// DeviceEvent is one parsed inbound device message.
//
// The first token carries the target puzzle and an optional kind suffix
// ("P5" targets puzzle 5, "P12x" targets puzzle 12 with kind "x").
// Args holds the remaining tokens, whitespace-trimmed, in order.
type DeviceEvent struct {
	PuzzleID int
	Kind     string
	Args     []string
	Raw      string
}

// ParseDeviceEvent parses a raw comma-separated device payload.
func ParseDeviceEvent(raw string) (*DeviceEvent, error) {
	parts := strings.Split(strings.TrimSpace(raw), ",")
	head := strings.TrimSpace(parts[0])

	if len(head) < 2 || head[0] != 'P' {
		return nil, fmt.Errorf("%w: missing P<id> header in %q", ErrMalformedEvent, raw)
	}

	digits := 1
	for digits < len(head) && head[digits] >= '0' && head[digits] <= '9' {
		digits++
	}
	if digits == 1 {
		return nil, fmt.Errorf("%w: no puzzle id in %q", ErrMalformedEvent, head)
	}

	id, err := strconv.Atoi(head[1:digits])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid puzzle id in %q: %v", ErrMalformedEvent, head, err)
	}

	args := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		args = append(args, strings.TrimSpace(p))
	}

	return &DeviceEvent{
		PuzzleID: id,
		Kind:     head[digits:],
		Args:     args,
		Raw:      raw,
	}, nil
}
