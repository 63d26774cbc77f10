package puzzle

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dyluth/lair/pkg/devicebus"
)

// CountdownConfig parameterizes a countdown-with-sabotage puzzle.
type CountdownConfig struct {
	Duration time.Duration
	Tick     time.Duration
	// ReportEvery throttles countdown_tick pushes to whole multiples of it.
	ReportEvery  time.Duration
	RestartDelay time.Duration
	// Message is the sabotage text; %d is replaced by the interrupting box.
	Message string
}

// Countdown implements the monotonic countdown with sabotage: the puzzle is
// solved when the countdown reaches zero, and any interrupt pauses it and
// restarts it from full duration after a delay.
type Countdown struct {
	base
	cfg CountdownConfig

	running         bool
	remaining       time.Duration
	restartPending  bool
	restartDeadline time.Time
	lastBox         *int
	lastMessage     string
}

// NewCountdown builds a countdown puzzle.
func NewCountdown(id int, env Env, cfg CountdownConfig) *Countdown {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if cfg.ReportEvery <= 0 {
		cfg.ReportEvery = 10 * time.Second
	}
	c := &Countdown{cfg: cfg, remaining: cfg.Duration}
	c.init(id, env)
	return c
}

// Initialize starts a fresh countdown, even after an earlier solve.
func (c *Countdown) Initialize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.begin()
	c.running = false
	c.remaining = c.cfg.Duration
	c.restartPending = false
	c.lastBox = nil
	c.lastMessage = ""
	c.push(c.view())
	c.start()
}

// Reset restarts the countdown from full duration.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.solved {
		return
	}
	c.invalidate()
	c.restartPending = false
	c.start()
}

// Snapshot implements Machine.
func (c *Countdown) Snapshot() Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NewUpdate(c.id).Merge(c.view())
}

// view reports the full duration whenever the countdown is not running.
func (c *Countdown) view() Update {
	remaining := c.cfg.Duration
	if c.running {
		remaining = c.remaining
	}
	u := Update{
		"active":             c.running,
		"remaining":          seconds(remaining),
		"duration":           seconds(c.cfg.Duration),
		"restart_pending":    c.restartPending,
		"waiting_seconds":    nil,
		"last_reset_box":     nil,
		"last_reset_message": nil,
		"puzzle_solved":      c.solved,
	}
	if c.restartPending {
		left := c.restartDeadline.Sub(c.env.Clock.Now())
		u["waiting_seconds"] = max(0, seconds(left))
	}
	if c.lastBox != nil {
		u["last_reset_box"] = *c.lastBox
		u["last_reset_message"] = c.lastMessage
	}
	return u
}

// HandleEvent takes "P6,<box>" and pauses the countdown.
func (c *Countdown) HandleEvent(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: expected box", ErrMalformedInput)
	}
	box, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: box %q", ErrMalformedInput, args[0])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.solved {
		return ErrSolved
	}
	if c.restartPending {
		return fmt.Errorf("%w: restart pending", ErrInputBlocked)
	}

	c.invalidate()
	c.running = false
	c.restartPending = true
	c.restartDeadline = c.env.Clock.Now().Add(c.cfg.RestartDelay)
	c.lastBox = &box
	c.lastMessage = strings.ReplaceAll(c.cfg.Message, "%d", strconv.Itoa(box))

	c.push(Update{"countdown_reset": map[string]any{
		"box":             box,
		"message":         c.lastMessage,
		"waiting_seconds": seconds(c.cfg.RestartDelay),
	}})

	c.schedule(c.cfg.RestartDelay, func() {
		c.restartPending = false
		c.publish(devicebus.StartCommand(c.id))
		c.start()
	})
	return nil
}

func (c *Countdown) start() {
	c.running = true
	c.remaining = c.cfg.Duration
	c.push(Update{"countdown_start": map[string]any{
		"duration": seconds(c.cfg.Duration),
		"start_ts": c.env.Clock.Now().Unix(),
	}})
	c.schedule(c.cfg.Tick, c.tick)
}

func (c *Countdown) tick() {
	c.remaining -= c.cfg.Tick
	if c.remaining < 0 {
		c.remaining = 0
	}
	if c.remaining%c.cfg.ReportEvery == 0 {
		c.push(Update{"countdown_tick": map[string]any{"remaining": seconds(c.remaining)}})
	}
	if c.remaining == 0 {
		c.running = false
		c.solve(nil)
		return
	}
	c.schedule(c.cfg.Tick, c.tick)
}

func seconds(d time.Duration) int {
	return int(d / time.Second)
}
