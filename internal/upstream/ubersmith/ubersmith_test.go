package ubersmith

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudykangaroo/orchestrate/internal/upstream"
)

func newAggregator(t *testing.T, handler http.HandlerFunc) *Aggregator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := upstream.NewClient(upstream.ClientConfig{
		BaseURL:  server.URL,
		Timeout:  time.Second,
		Username: "dashboard",
		Password: "hunter2",
	})
	return New(client, nil)
}

func TestPostTicketUpdate(t *testing.T) {
	var got TicketPost
	agg := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/tickets/ticketid/42/posts", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "dashboard", user)
		require.Equal(t, "hunter2", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"status": true}`)
	})

	result, err := agg.PostTicketUpdate(context.Background(), 42, TicketPost{
		Subject:   "escalation",
		Body:      "disk check critical on web01",
		Visible:   1,
		TimeSpent: 5,
	})
	require.NoError(t, err)

	assert.True(t, result.Status)
	assert.Equal(t, "escalation", got.Subject)
	assert.Equal(t, 5, got.TimeSpent)
}

func TestPostTicketUpdateRejection(t *testing.T) {
	agg := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": false, "error_message": "ticket closed", "error_code": 9}`)
	})

	result, err := agg.PostTicketUpdate(context.Background(), 42, TicketPost{Body: "hello"})
	require.NoError(t, err, "a service-level rejection is data, not an error")

	assert.False(t, result.Status)
	assert.Equal(t, "ticket closed", result.ErrorMessage)
	assert.Equal(t, 9, result.ErrorCode)
}

func TestPostTicketUpdateTransportFailure(t *testing.T) {
	agg := newAggregator(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
	})

	_, err := agg.PostTicketUpdate(context.Background(), 42, TicketPost{Body: "hello"})
	require.Error(t, err)
}
