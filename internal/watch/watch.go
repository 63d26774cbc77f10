// Package watch streams the observer updates an orchestrator mirrors to Redis.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dyluth/lair/internal/printer"
	"github.com/dyluth/lair/pkg/devicebus"
)

// OutputFormat selects how updates are written.
type OutputFormat string

const (
	// OutputFormatDefault is one human-readable line per update.
	OutputFormatDefault OutputFormat = "default"
	// OutputFormatJSON is line-delimited JSON.
	OutputFormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputFormatDefault, OutputFormatJSON:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

type formatter interface {
	Format(update map[string]any) error
}

func newFormatter(format OutputFormat, w io.Writer) formatter {
	if format == OutputFormatJSON {
		return &jsonFormatter{encoder: json.NewEncoder(w)}
	}
	return &defaultFormatter{writer: w, now: time.Now}
}

// StreamUpdates writes every mirrored update of the client's instance to w
// until ctx is cancelled or the subscription closes.
func StreamUpdates(ctx context.Context, client *devicebus.Client, format OutputFormat, w io.Writer) error {
	sub, err := client.SubscribeUpdates(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to updates: %w", err)
	}
	defer sub.Close()

	f := newFormatter(format, w)
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := f.Format(update); err != nil {
				return fmt.Errorf("failed to write update: %w", err)
			}
		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			fmt.Fprintf(w, "⚠️  %v\n", err)
		}
	}
}

type jsonFormatter struct {
	encoder *json.Encoder
}

func (f *jsonFormatter) Format(update map[string]any) error {
	return f.encoder.Encode(update)
}

type defaultFormatter struct {
	writer io.Writer
	now    func() time.Time
}

// headlines maps marker fields to the line prefix used when they are present
// and not false, checked in order.
var headlines = []struct {
	key   string
	emoji string
	label string
}{
	{"puzzle_solved", "🏁", "Solved"},
	{"start_timer", "⏱️", "Timer started"},
	{"timed_out", "⌛", "Timed out"},
	{"incorrect", "❌", "Incorrect"},
	{"error_reset", "❌", "Sequence reset"},
	{"countdown_reset", "⚡", "Power lost"},
	{"round_result", "🎯", "Round result"},
	{"question_result", "🎯", "Question result"},
	{"input_result", "🎯", "Input result"},
	{"sequence_correct", "🎵", "Sequence checked"},
	{"play_alarm_sound", "🚨", "Alarm"},
	{"play_normal_sound", "🔔", "Alarm over"},
}

func (f *defaultFormatter) Format(update map[string]any) error {
	emoji, label := "🧩", "Update"
	for _, h := range headlines {
		if v, ok := update[h.key]; ok && v != false {
			emoji, label = h.emoji, h.label
			break
		}
	}

	keys := make([]string, 0, len(update))
	for key := range update {
		if key != "puzzle_id" {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)

	fields := make([]string, len(keys))
	for i, key := range keys {
		fields[i] = key + "=" + printer.FormatValue(update[key])
	}

	puzzle := "-"
	if id, ok := update["puzzle_id"]; ok {
		puzzle = "P" + printer.FormatValue(id)
	}

	_, err := fmt.Fprintf(f.writer, "[%s] %s %s %s: %s\n",
		f.now().Format("15:04:05"), emoji, puzzle, label, strings.Join(fields, " "))
	return err
}
