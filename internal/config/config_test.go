package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
bus:
  inbound_topic: "DEVICES_IN"
  max_events_per_second: 50
puzzles:
  sums:
    id: 1
    round_sizes: [2, 3]
    cooldown: 4s
  power:
    id: 6
    duration: 90s
    message: "box %d is down"
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, "DEVICES_IN", config.Bus.InboundTopic)
	assert.Equal(t, 50, config.Bus.Burst, "burst defaults to the rate")
	assert.Equal(t, ":8080", config.HTTP.Addr)

	assert.Equal(t, []int{2, 3}, config.Puzzles.Sums.RoundSizes)
	assert.Equal(t, 4*time.Second, config.Puzzles.Sums.Cooldown)
	assert.Equal(t, 5*time.Second, config.Puzzles.Sums.TimeoutGrace, "zero fields are filled")
	assert.NotEmpty(t, config.Puzzles.Sums.Pool)

	assert.Equal(t, 90*time.Second, config.Puzzles.Power.Duration)
	assert.Equal(t, time.Second, config.Puzzles.Power.Tick)
	assert.Equal(t, "box %d is down", config.Puzzles.Power.Message)

	// blocks left out get the installation defaults
	assert.Equal(t, 9, config.Puzzles.Tokens.ID)
	assert.Len(t, config.Puzzles.Codes.Codes, 10)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, config.Enabled())
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/lair.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
puzzles:
  - this is invalid
    yaml syntax
`)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
puzzles:
  tokens:
    grace: "soon"
`)

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
puzzles:
  sums:
    id: 1
    cooldwon: 4s
`)

	config, err := Load(configPath)
	require.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "cooldwon")
}

func TestDefault_TimingEndCommand(t *testing.T) {
	assert.Equal(t, "P5_End", Default().Puzzles.Timing.EndCommand)
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	config := &LairConfig{Version: "2.0"}

	err := config.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported version: 2.0")
}

func TestValidate_Defaults(t *testing.T) {
	config := Default()

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9}, config.Enabled())
	assert.Equal(t, []int{4, 7, 15}, config.Puzzles.Sums.RoundSizes)
	assert.Equal(t, []float64{20, 30, 50}, config.Puzzles.Timing.Limits)
	assert.Equal(t, 1, config.Puzzles.Timing.FirstPlayer)
	assert.Equal(t, 0, config.Puzzles.Quiz.FirstPlayer)
	assert.Equal(t, 60*time.Second, config.Puzzles.Power.Duration)
	assert.Equal(t, 22, config.Puzzles.Tokens.Solution[0])
	require.NotNil(t, config.Puzzles.Sequences.Alarm)
	assert.Equal(t, 2, config.Puzzles.Sequences.Alarm.Remap[0])
	assert.Equal(t, []int{5, 1, 8, 3}, config.Puzzles.Music.Rounds[0].Order)
	assert.Equal(t, 0.0, config.Bus.MaxEventsPerSecond, "unlimited by default")
}

func TestValidate_DisabledPuzzle(t *testing.T) {
	config := &LairConfig{
		Version: "1.0",
		Puzzles: Puzzles{
			Quiz:   &QuizPuzzle{Common: Common{Disabled: true}},
			Memory: &MemoryPuzzle{Common: Common{Disabled: true}},
		},
	}

	require.NoError(t, config.Validate())
	assert.Equal(t, []int{1, 2, 4, 5, 6, 7, 9}, config.Enabled())
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		puzzles Puzzles
		wantErr string
	}{
		{
			name: "duplicate ids",
			puzzles: Puzzles{
				Codes:  &CodesPuzzle{Common: Common{ID: 3}},
				Tokens: &TokensPuzzle{Common: Common{ID: 3}},
			},
			wantErr: "duplicate puzzle id 3",
		},
		{
			name:    "negative id",
			puzzles: Puzzles{Codes: &CodesPuzzle{Common: Common{ID: -2}}},
			wantErr: "id must be >= 1",
		},
		{
			name:    "round larger than the pool",
			puzzles: Puzzles{Sums: &SumsPuzzle{Pool: []int{1, 2, 3}, RoundSizes: []int{4}}},
			wantErr: "puzzle 'sums': round 1 size 4",
		},
		{
			name: "correct answer out of range",
			puzzles: Puzzles{Quiz: &QuizPuzzle{Questions: []Question{
				{ID: "x", Text: "?", Answers: []string{"a", "b"}, Correct: 2},
			}}},
			wantErr: "correct index 2 out of range",
		},
		{
			name: "music order uses an unknown track",
			puzzles: Puzzles{Music: &MusicPuzzle{Rounds: []MusicRound{
				{Order: []int{1, 2}, Tracks: map[int]string{1: "a.mp3"}},
			}}},
			wantErr: "order uses track 2",
		},
		{
			name:    "objectives do not match limits",
			puzzles: Puzzles{Timing: &TimingPuzzle{Limits: []float64{1, 2}, Objectives: []float64{1}}},
			wantErr: "objectives must list one value per round",
		},
		{
			name:    "tick does not divide duration",
			puzzles: Puzzles{Power: &PowerPuzzle{Duration: 10 * time.Second, Tick: 3 * time.Second}},
			wantErr: "tick must be positive and divide duration",
		},
		{
			name:    "fewer symbols than tokens",
			puzzles: Puzzles{Memory: &MemoryPuzzle{Symbols: []string{"a"}, TokenNumbers: []int{1, 2}}},
			wantErr: "at least as many symbols as tokens",
		},
		{
			name: "inverted alarm range",
			puzzles: Puzzles{Sequences: &SequencesPuzzle{Alarm: &AlarmConfig{
				EnterAfterMin: 10 * time.Second,
				EnterAfterMax: 5 * time.Second,
			}}},
			wantErr: "max >= min",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &LairConfig{Version: "1.0", Puzzles: tt.puzzles}
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_NoPuzzlesEnabled(t *testing.T) {
	off := Common{Disabled: true}
	config := &LairConfig{
		Version: "1.0",
		Puzzles: Puzzles{
			Sums: &SumsPuzzle{Common: off}, Sequences: &SequencesPuzzle{Common: off},
			Quiz: &QuizPuzzle{Common: off}, Music: &MusicPuzzle{Common: off},
			Timing: &TimingPuzzle{Common: off}, Power: &PowerPuzzle{Common: off},
			Codes: &CodesPuzzle{Common: off}, Memory: &MemoryPuzzle{Common: off},
			Tokens: &TokensPuzzle{Common: off},
		},
	}

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no puzzles enabled")
}

func TestValidate_NegativeRate(t *testing.T) {
	config := &LairConfig{Version: "1.0", Bus: &BusConfig{MaxEventsPerSecond: -1}}
	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_events_per_second must be >= 0")
}

func TestDefault_RoundTripsThroughYAML(t *testing.T) {
	data, err := yaml.Marshal(Default())
	require.NoError(t, err)

	config, err := Load(writeConfig(t, string(data)))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoadRuntime(t *testing.T) {
	t.Setenv("LAIR_INSTANCE_NAME", "escape-room-1")
	t.Setenv("REDIS_URL", "redis://cache:6380/2")
	t.Setenv("LAIR_SEED", "7")

	rt, err := LoadRuntime()
	require.NoError(t, err)
	assert.Equal(t, "escape-room-1", rt.InstanceName)
	assert.Equal(t, "redis://cache:6380/2", rt.RedisURL)
	assert.Equal(t, "lair.yml", rt.ConfigPath)
	assert.Equal(t, "info", rt.LogLevel)
	assert.Equal(t, uint64(7), rt.Seed)
}

func TestLoadRuntime_InvalidSeed(t *testing.T) {
	t.Setenv("LAIR_SEED", "not-a-number")

	_, err := LoadRuntime()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoadRuntime_InvalidInstanceName(t *testing.T) {
	t.Setenv("LAIR_INSTANCE_NAME", "Room_B")

	_, err := LoadRuntime()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LAIR_INSTANCE_NAME")
}

func TestValidateInstanceName(t *testing.T) {
	testCases := []struct {
		name      string
		inputName string
		errMsg    string
	}{
		{name: "simple", inputName: "lair"},
		{name: "hyphens", inputName: "room-b"},
		{name: "digits", inputName: "default-123"},
		{name: "single character", inputName: "a"},
		{name: "empty", inputName: "", errMsg: "cannot be empty"},
		{name: "uppercase", inputName: "Room", errMsg: "must be lowercase"},
		{name: "leading hyphen", inputName: "-room", errMsg: "not at start/end"},
		{name: "trailing hyphen", inputName: "room-", errMsg: "not at start/end"},
		{name: "colon", inputName: "room:b", errMsg: "must be lowercase"},
		{name: "too long", inputName: strings.Repeat("a", MaxInstanceNameLength+1), errMsg: "too long"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInstanceName(tc.inputName)
			if tc.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}

	assert.NoError(t, ValidateInstanceName(strings.Repeat("a", MaxInstanceNameLength)))
}
