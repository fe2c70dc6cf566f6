// Package sensu wraps the monitoring service's REST API: client and event
// lookups plus silence stashes.
package sensu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/upstream"
)

// Aggregator issues monitoring lookups and silence actions.
type Aggregator struct {
	client *upstream.Client
	log    *logging.Logger
}

// New creates a monitoring aggregator.
func New(client *upstream.Client, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewDefault("sensu")
	}
	return &Aggregator{client: client, log: log}
}

// ClientRecord is one monitored client.
type ClientRecord struct {
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Subscriptions []string `json:"subscriptions"`
	Timestamp     int64    `json:"timestamp"`
}

// Event is one monitoring event.
type Event struct {
	Client      string `json:"client"`
	Check       string `json:"check"`
	Output      string `json:"output"`
	Status      int    `json:"status"`
	Occurrences int    `json:"occurrences"`
	Flapping    bool   `json:"flapping"`
	Issued      int64  `json:"issued"`
}

// Device joins a client record with its events. When the client record is
// missing, Err carries the synthesized unknown-host message and both sides
// are empty JSON objects rather than nils.
type Device struct {
	Hostname string          `json:"hostname"`
	Node     json.RawMessage `json:"node"`
	Events   json.RawMessage `json:"events"`
	Err      string          `json:"error,omitempty"`
}

// GetDevice fetches the client record and its events concurrently. A host
// unknown to the monitoring service resolves to a device carrying an
// "unknown host" error payload; a join yielding the wrong result count is a
// hard error.
func (a *Aggregator) GetDevice(ctx context.Context, hostname string) (Device, error) {
	escaped := url.PathEscape(hostname)
	results := upstream.Parallel(ctx,
		a.fetch("/client/"+escaped),
		a.fetch("/events/"+escaped),
	)
	if len(results) != 2 {
		a.log.WithContext(ctx).Error("could not retrieve events and node from monitoring")
		return Device{}, fmt.Errorf("could not retrieve events and node from monitoring: got %d results", len(results))
	}

	if results[0].Err != nil && !upstream.IsNotFound(results[0].Err) {
		return Device{}, fmt.Errorf("fetch monitoring client %s: %w", hostname, results[0].Err)
	}

	noClient := upstream.IsNotFound(results[0].Err) ||
		len(results[0].Data) == 0 || string(results[0].Data) == "null"
	if noClient {
		return Device{
			Hostname: hostname,
			Node:     json.RawMessage("{}"),
			Events:   json.RawMessage("{}"),
			Err:      "No information is known about " + hostname,
		}, nil
	}

	device := Device{Hostname: hostname, Node: results[0].Data}
	if results[1].Err != nil {
		a.log.WithContext(ctx).WithError(results[1].Err).Warn("monitoring events lookup failed")
		device.Events = json.RawMessage("[]")
		device.Err = results[1].Err.Error()
	} else {
		device.Events = results[1].Data
	}
	return device, nil
}

// ListClients returns every monitored client.
func (a *Aggregator) ListClients(ctx context.Context) ([]ClientRecord, error) {
	var clients []ClientRecord
	if err := a.client.GetJSON(ctx, "/clients/", &clients); err != nil {
		return nil, fmt.Errorf("list monitoring clients: %w", err)
	}
	return clients, nil
}

// ListClientsRaw returns the client list as opaque JSON for the fleet join.
func (a *Aggregator) ListClientsRaw(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, "/clients/", &raw); err != nil {
		return nil, fmt.Errorf("list monitoring clients: %w", err)
	}
	return raw, nil
}

// ListEvents returns every current event.
func (a *Aggregator) ListEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := a.client.GetJSON(ctx, "/events", &events); err != nil {
		return nil, fmt.Errorf("list monitoring events: %w", err)
	}
	return events, nil
}

// StashPath builds the silence stash path for a client, optionally scoped
// to one check.
func StashPath(client, check string) string {
	if check != "" {
		return "silence/" + client + "/" + check
	}
	return "silence/" + client
}

type stash struct {
	Path    string                 `json:"path"`
	Content map[string]interface{} `json:"content"`
	Expire  int                    `json:"expire"`
}

// Silence suppresses notifications for a client (or one of its checks) for
// expireSeconds. The caller validates the duration bound.
func (a *Aggregator) Silence(ctx context.Context, clientName, check string, expireSeconds int, source string) error {
	body := stash{
		Path: StashPath(clientName, check),
		Content: map[string]interface{}{
			"reason":    "silenced from dashboard",
			"source":    source,
			"timestamp": time.Now().Unix(),
		},
		Expire: expireSeconds,
	}

	resp, err := a.client.Post(ctx, "/stashes", body)
	if err != nil {
		return fmt.Errorf("create silence stash: %w", err)
	}
	if err := upstream.DecodeResponse(resp, nil); err != nil {
		return fmt.Errorf("create silence stash: %w", err)
	}
	return nil
}

// Unsilence clears the silence stash for a client or check.
func (a *Aggregator) Unsilence(ctx context.Context, clientName, check string) error {
	resp, err := a.client.Delete(ctx, "/stashes/"+StashPath(clientName, check))
	if err != nil {
		return fmt.Errorf("delete silence stash: %w", err)
	}
	if err := upstream.DecodeResponse(resp, nil); err != nil {
		return fmt.Errorf("delete silence stash: %w", err)
	}
	return nil
}

// Silenced reports whether a silence stash exists for the client or check.
func (a *Aggregator) Silenced(ctx context.Context, clientName, check string) (bool, error) {
	resp, err := a.client.Get(ctx, "/stashes/"+StashPath(clientName, check))
	if err != nil {
		return false, fmt.Errorf("fetch silence stash: %w", err)
	}
	err = upstream.DecodeResponse(resp, nil)
	if err == nil {
		return true, nil
	}
	if upstream.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("fetch silence stash: %w", err)
}

func (a *Aggregator) fetch(path string) upstream.Call {
	return func(ctx context.Context) (json.RawMessage, error) {
		var raw json.RawMessage
		if err := a.client.GetJSON(ctx, path, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	}
}
