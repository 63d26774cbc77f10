package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_RoundTrip(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	c := NewClient(server.URL + "/")
	ctx := context.Background()

	status, err := c.Start(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, status.ActivePuzzle)

	state, err := c.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(2), state["puzzle_id"])

	puzzles, err := c.Puzzles(ctx)
	require.NoError(t, err)
	assert.Len(t, puzzles.Puzzles, 9)
	assert.Equal(t, 2, puzzles.ActivePuzzle)

	_, err = c.Reset(ctx)
	require.NoError(t, err)
	_, err = c.TimerExpired(ctx)
	require.NoError(t, err)

	status, err = c.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.ActivePuzzle)

	state, err = c.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state)
}

func TestClient_APIError(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(f.handler)
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL).Start(context.Background(), 99)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "unknown puzzle")
}

func TestClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url).State(context.Background())
	assert.ErrorContains(t, err, "failed to reach orchestrator")
}
