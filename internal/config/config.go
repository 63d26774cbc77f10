package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFileName is the config file looked up in the working directory.
const DefaultFileName = "lair.yml"

// LairConfig represents the top-level lair.yml configuration
type LairConfig struct {
	Version string      `yaml:"version"`
	Bus     *BusConfig  `yaml:"bus,omitempty"`
	HTTP    *HTTPConfig `yaml:"http,omitempty"`
	Puzzles Puzzles     `yaml:"puzzles"`
}

// BusConfig names the device topics and bounds inbound traffic
type BusConfig struct {
	InboundTopic       string  `yaml:"inbound_topic,omitempty"`
	OutboundTopic      string  `yaml:"outbound_topic,omitempty"`
	MaxEventsPerSecond float64 `yaml:"max_events_per_second,omitempty"` // 0 = unlimited
	Burst              int     `yaml:"burst,omitempty"`
	OutboxSize         int     `yaml:"outbox_size,omitempty"`
}

// HTTPConfig configures the operator API
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Puzzles holds one block per installation puzzle. A missing block gets the
// installation defaults; set disabled: true to leave a puzzle out.
type Puzzles struct {
	Sums      *SumsPuzzle      `yaml:"sums,omitempty"`
	Sequences *SequencesPuzzle `yaml:"sequences,omitempty"`
	Quiz      *QuizPuzzle      `yaml:"quiz,omitempty"`
	Music     *MusicPuzzle     `yaml:"music,omitempty"`
	Timing    *TimingPuzzle    `yaml:"timing,omitempty"`
	Power     *PowerPuzzle     `yaml:"power,omitempty"`
	Codes     *CodesPuzzle     `yaml:"codes,omitempty"`
	Memory    *MemoryPuzzle    `yaml:"memory,omitempty"`
	Tokens    *TokensPuzzle    `yaml:"tokens,omitempty"`
}

// Common holds the fields every puzzle block shares
type Common struct {
	ID       int  `yaml:"id"`
	Disabled bool `yaml:"disabled,omitempty"`
}

// SumsPuzzle: players find two numbers adding up to each displayed result
type SumsPuzzle struct {
	Common       `yaml:",inline"`
	Pool         []int         `yaml:"pool"`
	RoundSizes   []int         `yaml:"round_sizes"`
	Cooldown     time.Duration `yaml:"cooldown"`
	TimeoutGrace time.Duration `yaml:"timeout_grace"`
}

// SequencesPuzzle: each player enters a fixed symbol sequence
type SequencesPuzzle struct {
	Common    `yaml:",inline"`
	Sequences map[int][]int `yaml:"sequences"`
	Alarm     *AlarmConfig  `yaml:"alarm,omitempty"`
}

// AlarmConfig periodically remaps the expected symbols
type AlarmConfig struct {
	Remap         map[int]int   `yaml:"remap"`
	EnterAfterMin time.Duration `yaml:"enter_after_min"`
	EnterAfterMax time.Duration `yaml:"enter_after_max"`
	DurationMin   time.Duration `yaml:"duration_min"`
	DurationMax   time.Duration `yaml:"duration_max"`
	Transition    time.Duration `yaml:"transition"`
	EnterCue      string        `yaml:"enter_cue"`
	ExitCue       string        `yaml:"exit_cue"`
}

// QuizPuzzle: every player must answer each question correctly, several times in a row
type QuizPuzzle struct {
	Common      `yaml:",inline"`
	Players     int           `yaml:"players"`
	FirstPlayer int           `yaml:"first_player"`
	Streak      int           `yaml:"streak"`
	NextDelay   time.Duration `yaml:"next_delay"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Questions   []Question    `yaml:"questions"`
}

// Question is one quiz question; Correct indexes Answers
type Question struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"q"`
	Answers []string `yaml:"answers"`
	Correct int      `yaml:"correct"`
}

// MusicPuzzle: players rebuild a sample from the right tracks in the right order
type MusicPuzzle struct {
	Common         `yaml:",inline"`
	LeadIn         time.Duration `yaml:"lead_in"`
	EvalDelay      time.Duration `yaml:"eval_delay"`
	ResultHold     time.Duration `yaml:"result_hold"`
	CompletionHold time.Duration `yaml:"completion_hold"`
	Rounds         []MusicRound  `yaml:"rounds"`
}

// MusicRound is one sample and the track order that rebuilds it
type MusicRound struct {
	Sample         string         `yaml:"sample"`
	SampleDuration time.Duration  `yaml:"sample_duration"`
	Order          []int          `yaml:"order"`
	Tracks         map[int]string `yaml:"tracks"`
}

// TimingPuzzle: players stop their timers as close to the objective as possible
type TimingPuzzle struct {
	Common         `yaml:",inline"`
	Players        int           `yaml:"players"`
	FirstPlayer    int           `yaml:"first_player"`
	Limits         []float64     `yaml:"limits"`
	Objectives     []float64     `yaml:"objectives"`
	StartDelay     time.Duration `yaml:"start_delay"`
	EvalDelay      time.Duration `yaml:"eval_delay"`
	ResultHold     time.Duration `yaml:"result_hold"`
	NextRoundDelay time.Duration `yaml:"next_round_delay"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	// EndCommand is what the timing hardware listens for on solve.
	EndCommand     string        `yaml:"end_command"`
}

// PowerPuzzle: the room must survive a countdown while boxes lose power
type PowerPuzzle struct {
	Common       `yaml:",inline"`
	Duration     time.Duration `yaml:"duration"`
	Tick         time.Duration `yaml:"tick"`
	ReportEvery  time.Duration `yaml:"report_every"`
	RestartDelay time.Duration `yaml:"restart_delay"`
	Message      string        `yaml:"message"`
}

// CodesPuzzle: each box opens with its own code
type CodesPuzzle struct {
	Common `yaml:",inline"`
	Codes  map[int]string `yaml:"codes"`
}

// MemoryPuzzle: players memorize symbol and colour sets and rebuild them on the token boxes
type MemoryPuzzle struct {
	Common       `yaml:",inline"`
	Symbols      []string      `yaml:"symbols"`
	Colors       []string      `yaml:"colors"`
	TokenNumbers []int         `yaml:"token_numbers"`
	Rounds       int           `yaml:"rounds"`
	ClearHold    time.Duration `yaml:"clear_hold"`
	NumbersHold  time.Duration `yaml:"numbers_hold"`
	FirstSetHold time.Duration `yaml:"first_set_hold"`
	SetHold      time.Duration `yaml:"set_hold"`
	EvalDelay    time.Duration `yaml:"eval_delay"`
	ResultHold   time.Duration `yaml:"result_hold"`
}

// TokensPuzzle: every box must hold its token
type TokensPuzzle struct {
	Common   `yaml:",inline"`
	Solution map[int]int   `yaml:"solution"`
	Grace    time.Duration `yaml:"grace"`
}

// Validate performs strict validation on the configuration and fills in
// defaults for everything left out.
func (c *LairConfig) Validate() error {
	// Required: version
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Bus == nil {
		c.Bus = &BusConfig{}
	}
	if c.Bus.MaxEventsPerSecond < 0 {
		return fmt.Errorf("bus.max_events_per_second must be >= 0 (0 = unlimited), got %v", c.Bus.MaxEventsPerSecond)
	}
	if c.Bus.MaxEventsPerSecond > 0 && c.Bus.Burst == 0 {
		c.Bus.Burst = int(c.Bus.MaxEventsPerSecond)
		if c.Bus.Burst < 1 {
			c.Bus.Burst = 1
		}
	}
	if c.HTTP == nil {
		c.HTTP = &HTTPConfig{}
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}

	p := &c.Puzzles
	p.applyDefaults()

	checks := []struct {
		name   string
		common *Common
		check  func() error
	}{
		{"sums", &p.Sums.Common, p.Sums.validate},
		{"sequences", &p.Sequences.Common, p.Sequences.validate},
		{"quiz", &p.Quiz.Common, p.Quiz.validate},
		{"music", &p.Music.Common, p.Music.validate},
		{"timing", &p.Timing.Common, p.Timing.validate},
		{"power", &p.Power.Common, p.Power.validate},
		{"codes", &p.Codes.Common, p.Codes.validate},
		{"memory", &p.Memory.Common, p.Memory.validate},
		{"tokens", &p.Tokens.Common, p.Tokens.validate},
	}

	idsSeen := make(map[int]string) // id → puzzle name
	enabled := 0
	for _, chk := range checks {
		if chk.common.Disabled {
			continue
		}
		enabled++
		if chk.common.ID < 1 {
			return fmt.Errorf("puzzle '%s': id must be >= 1, got %d", chk.name, chk.common.ID)
		}
		if other, exists := idsSeen[chk.common.ID]; exists {
			return fmt.Errorf("duplicate puzzle id %d (puzzles '%s' and '%s')", chk.common.ID, other, chk.name)
		}
		idsSeen[chk.common.ID] = chk.name
		if err := chk.check(); err != nil {
			return fmt.Errorf("puzzle '%s': %w", chk.name, err)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("no puzzles enabled")
	}

	return nil
}

func (s *SumsPuzzle) validate() error {
	if len(s.RoundSizes) == 0 {
		return fmt.Errorf("round_sizes is required")
	}
	distinct := make(map[int]bool, len(s.Pool))
	for _, v := range s.Pool {
		distinct[v] = true
	}
	for i, size := range s.RoundSizes {
		if size < 1 || size > len(distinct) {
			return fmt.Errorf("round %d size %d must be between 1 and the %d distinct pool values", i+1, size, len(distinct))
		}
	}
	return nil
}

func (s *SequencesPuzzle) validate() error {
	if len(s.Sequences) == 0 {
		return fmt.Errorf("sequences is required")
	}
	for player, seq := range s.Sequences {
		if len(seq) == 0 {
			return fmt.Errorf("player %d has an empty sequence", player)
		}
	}
	if a := s.Alarm; a != nil {
		if a.EnterAfterMax < a.EnterAfterMin || a.DurationMax < a.DurationMin {
			return fmt.Errorf("alarm ranges must have max >= min")
		}
		if a.EnterAfterMin <= 0 || a.DurationMin <= 0 {
			return fmt.Errorf("alarm enter_after_min and duration_min must be positive")
		}
	}
	return nil
}

func (q *QuizPuzzle) validate() error {
	if q.Players < 1 {
		return fmt.Errorf("players must be >= 1")
	}
	if len(q.Questions) == 0 {
		return fmt.Errorf("questions is required")
	}
	for i, question := range q.Questions {
		if len(question.Answers) == 0 {
			return fmt.Errorf("question %d has no answers", i)
		}
		if question.Correct < 0 || question.Correct >= len(question.Answers) {
			return fmt.Errorf("question %d: correct index %d out of range", i, question.Correct)
		}
	}
	return nil
}

func (m *MusicPuzzle) validate() error {
	if len(m.Rounds) == 0 {
		return fmt.Errorf("rounds is required")
	}
	for i, r := range m.Rounds {
		if len(r.Order) == 0 {
			return fmt.Errorf("round %d: order is required", i+1)
		}
		for _, track := range r.Order {
			if _, ok := r.Tracks[track]; !ok {
				return fmt.Errorf("round %d: order uses track %d which is not in tracks", i+1, track)
			}
		}
	}
	return nil
}

func (t *TimingPuzzle) validate() error {
	if t.Players < 1 {
		return fmt.Errorf("players must be >= 1")
	}
	if len(t.Limits) == 0 {
		return fmt.Errorf("limits is required")
	}
	if len(t.Objectives) != 0 && len(t.Objectives) != len(t.Limits) {
		return fmt.Errorf("objectives must list one value per round (%d), got %d", len(t.Limits), len(t.Objectives))
	}
	return nil
}

func (p *PowerPuzzle) validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if p.Tick <= 0 || p.Duration%p.Tick != 0 {
		return fmt.Errorf("tick must be positive and divide duration")
	}
	return nil
}

func (c *CodesPuzzle) validate() error {
	if len(c.Codes) == 0 {
		return fmt.Errorf("codes is required")
	}
	return nil
}

func (m *MemoryPuzzle) validate() error {
	if len(m.TokenNumbers) == 0 || len(m.Symbols) < len(m.TokenNumbers) {
		return fmt.Errorf("need token_numbers and at least as many symbols as tokens")
	}
	if len(m.Colors) == 0 {
		return fmt.Errorf("colors is required")
	}
	if m.Rounds < 1 {
		return fmt.Errorf("rounds must be >= 1")
	}
	return nil
}

func (t *TokensPuzzle) validate() error {
	if len(t.Solution) == 0 {
		return fmt.Errorf("solution is required")
	}
	return nil
}

// Enabled returns the ids of all enabled puzzles in ascending order.
func (c *LairConfig) Enabled() []int {
	var ids []int
	p := c.Puzzles
	for _, common := range []*Common{
		&p.Sums.Common, &p.Sequences.Common, &p.Quiz.Common,
		&p.Music.Common, &p.Timing.Common, &p.Power.Common,
		&p.Codes.Common, &p.Memory.Common, &p.Tokens.Common,
	} {
		if !common.Disabled {
			ids = append(ids, common.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// Load reads and validates lair.yml from the specified path
func Load(path string) (*LairConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config LairConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
