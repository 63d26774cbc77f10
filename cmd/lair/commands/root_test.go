package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/lair/internal/printer"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the real root command with args and returns what the printer wrote.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	color.NoColor = true
	var out, errOut bytes.Buffer
	printer.SetOutput(&out, &errOut)
	t.Cleanup(func() { printer.SetOutput(os.Stdout, os.Stderr) })

	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// resetFlags restores every flag of cmd and its children to its default,
// since the package-level commands keep values between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// fakeOrchestrator serves canned operator API responses and records the calls.
func fakeOrchestrator(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()

	var (
		mu    sync.Mutex
		calls []string
	)
	record := func(r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, r.Method+" "+r.URL.Path)
	}
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
	mux.HandleFunc("/puzzles/3/start", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]int{"active_puzzle": 3})
	})
	mux.HandleFunc("/puzzles/9/start", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusNotFound, map[string]string{"error": "unknown puzzle 9"})
	})
	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]int{"active_puzzle": 0})
	})
	mux.HandleFunc("/puzzles", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]any{"puzzles": []int{1, 2, 3}, "active_puzzle": 3})
	})
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		reply(w, http.StatusOK, map[string]any{"puzzle_id": 3, "current_round": 1, "puzzle_solved": false})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return slices.Clone(calls)
	}
}

// TestRootCommand_ShowsHelpWhenNoSubcommand tests that the root command
// shows help instead of silently succeeding when invoked without a subcommand
func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	testRoot := &cobra.Command{
		Use:   "lair",
		Short: "Test root command",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	buf := new(bytes.Buffer)
	testRoot.SetOut(buf)
	testRoot.SetErr(buf)

	err := testRoot.Execute()

	assert.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "Usage:", "Help should be displayed")
	assert.Contains(t, output, "lair", "Help should show command name")
}

// TestRootCommand_RejectsUnknownFlags tests that unknown flags
// passed to the root command cause an error instead of being silently ignored
func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, _, err := execute(t, "--unknown-flag", "value")
	require.Error(t, err, "Unknown flag should cause an error")
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	for _, name := range []string{"start", "stop", "reset", "timer-expired", "puzzles", "state", "send", "watch", "init"} {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestStart_CallsAPI(t *testing.T) {
	srv, calls := fakeOrchestrator(t)

	out, _, err := execute(t, "--server", srv.URL, "start", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Puzzle 3 started")
	assert.Equal(t, []string{"POST /puzzles/3/start"}, calls())
}

func TestStart_Errors(t *testing.T) {
	srv, calls := fakeOrchestrator(t)

	tests := []struct {
		name      string
		args      []string
		wantTitle string
		wantText  string
	}{
		{"non-numeric id", []string{"--server", srv.URL, "start", "three"}, "invalid puzzle id", `"three" is not a puzzle id`},
		{"zero id", []string{"--server", srv.URL, "start", "0"}, "invalid puzzle id", `"0" is not a puzzle id`},
		{"unknown puzzle", []string{"--server", srv.URL, "start", "9"}, "start failed", "unknown puzzle 9"},
		{"unreachable", []string{"--server", "http://127.0.0.1:1", "start", "3"}, "orchestrator not reachable", "Server: http://127.0.0.1:1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantTitle, err.Error())
			assert.Contains(t, errOut, tt.wantText)
		})
	}
	assert.Equal(t, []string{"POST /puzzles/9/start"}, calls(), "invalid ids never reach the API")
}

func TestStop_ReportsNoActivePuzzle(t *testing.T) {
	srv, _ := fakeOrchestrator(t)

	out, _, err := execute(t, "--server", srv.URL, "stop")
	require.NoError(t, err)
	assert.Contains(t, out, "stop done, no puzzle active")
}

func TestPuzzles_MarksActive(t *testing.T) {
	srv, _ := fakeOrchestrator(t)

	out, _, err := execute(t, "--server", srv.URL, "puzzles")
	require.NoError(t, err)
	assert.Contains(t, out, "  P1\n")
	assert.Contains(t, out, "  P2\n")
	assert.Contains(t, out, "P3 (active)")
}

func TestState_Formats(t *testing.T) {
	srv, _ := fakeOrchestrator(t)

	out, _, err := execute(t, "--server", srv.URL, "state", "--output", "default")
	require.NoError(t, err)
	assert.Contains(t, out, "Puzzle 3")
	assert.Contains(t, out, "current_round  1")

	out, _, err = execute(t, "--server", srv.URL, "state", "--output", "json")
	require.NoError(t, err)
	var snapshot map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snapshot))
	assert.Equal(t, float64(3), snapshot["puzzle_id"])
	assert.Equal(t, false, snapshot["puzzle_solved"])

	_, errOut, err := execute(t, "--server", srv.URL, "state", "--output", "yaml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
	assert.Contains(t, errOut, "Unknown format: yaml")
}

func TestSend_PublishesOnInboundTopic(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := rdb.Subscribe(ctx, "ROOM_IN")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	out, _, err := execute(t, "--redis-url", "redis://"+mr.Addr(), "send", "--topic", "ROOM_IN", "P7,0,0424")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent P7,0,0424 on ROOM_IN")

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "P7,0,0424", msg.Payload)
}

func TestSend_RejectsMalformedEvent(t *testing.T) {
	_, errOut, err := execute(t, "--redis-url", "redis://127.0.0.1:1", "send", "hello")
	require.Error(t, err)
	assert.Equal(t, "malformed device event", err.Error())
	assert.Contains(t, errOut, "lair send P7,0,0424")
}

func TestSend_InvalidRedisURL(t *testing.T) {
	_, _, err := execute(t, "--redis-url", "not a url", "send", "--topic", "TO_FLASK", "P7,0,0424")
	require.Error(t, err)
	assert.Equal(t, "invalid Redis URL", err.Error())
}

func TestSend_InvalidInstanceName(t *testing.T) {
	_, errOut, err := execute(t, "--name", "Room B", "send", "P7,0,0424")
	require.Error(t, err)
	assert.Equal(t, "invalid instance name", err.Error())
	assert.Contains(t, errOut, "must be lowercase")
}

func TestWatch_InvalidOutputFormat(t *testing.T) {
	_, errOut, err := execute(t, "watch", "--output", "xml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
	assert.Contains(t, errOut, "Valid formats: default, json")
}

func TestInit_WritesFilesThenRefusesWithoutForce(t *testing.T) {
	dir := t.TempDir()

	out, _, err := execute(t, "init", "--dir", dir, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, "lair.yml")
	assert.FileExists(t, filepath.Join(dir, "lair.yml"))
	assert.FileExists(t, filepath.Join(dir, "lair.env"))

	_, errOut, err := execute(t, "init", "--dir", dir, "--force=false")
	require.Error(t, err)
	assert.Equal(t, "initialization failed", err.Error())
	assert.Contains(t, errOut, "lair init --force")
}
