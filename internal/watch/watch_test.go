package watch

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lair/pkg/devicebus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFormatter(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 20, 15, 3, 0, time.UTC)

	tests := []struct {
		name     string
		update   map[string]any
		expected string
	}{
		{
			name:     "solved",
			update:   map[string]any{"puzzle_id": float64(7), "puzzle_solved": true},
			expected: "[20:15:03] 🏁 P7 Solved: puzzle_solved=true\n",
		},
		{
			name: "wrong sum",
			update: map[string]any{
				"puzzle_id": float64(1),
				"incorrect": map[string]any{"result": float64(7), "text": "3 + 5 = 8"},
			},
			expected: `[20:15:03] ❌ P1 Incorrect: incorrect={"result":7,"text":"3 + 5 = 8"}` + "\n",
		},
		{
			name:     "plain update with fractional total",
			update:   map[string]any{"puzzle_id": float64(5), "total": 19.5, "limit": float64(20)},
			expected: "[20:15:03] 🧩 P5 Update: limit=20 total=19.5\n",
		},
		{
			name:     "update without puzzle id",
			update:   map[string]any{"round": float64(2)},
			expected: "[20:15:03] 🧩 - Update: round=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &defaultFormatter{writer: buf, now: func() time.Time { return fixed }}
			require.NoError(t, f.Format(tt.update))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("json")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSON, f)

	_, err = ParseOutputFormat("yaml")
	assert.Error(t, err)
}

// lockedBuffer lets the test read output while StreamUpdates writes it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamUpdates_JSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := devicebus.NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance", devicebus.DefaultTopics())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() { done <- StreamUpdates(ctx, client, OutputFormatJSON, out) }()

	channel := devicebus.UpdatesChannel("test-instance")
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels(channel)) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, client.PublishUpdate(ctx, map[string]any{"puzzle_id": 3, "streak": 1}))
	require.NoError(t, client.PublishUpdate(ctx, map[string]any{"puzzle_id": 3, "puzzle_solved": true}))

	require.Eventually(t, func() bool {
		return strings.Count(out.String(), "\n") == 2
	}, time.Second, 10*time.Millisecond)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.JSONEq(t, `{"puzzle_id":3,"streak":1}`, lines[0])
	assert.JSONEq(t, `{"puzzle_id":3,"puzzle_solved":true}`, lines[1])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("StreamUpdates did not return after cancellation")
	}
}

func TestDefaultFormatter_FalseMarkersAreIgnored(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &defaultFormatter{writer: buf, now: time.Now}
	require.NoError(t, f.Format(map[string]any{"puzzle_id": float64(2), "puzzle_solved": false, "round": float64(1)}))
	assert.Contains(t, buf.String(), "🧩 P2 Update: puzzle_solved=false round=1")
}
