// Package puppet wraps the configuration-management service's inventory
// API. Node and fact payloads stay opaque JSON; callers pull fields out
// with the accessors below.
package puppet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/upstream"
)

// Aggregator issues inventory lookups against the PuppetDB v3 API.
type Aggregator struct {
	client *upstream.Client
	log    *logging.Logger
}

// New creates an inventory aggregator.
func New(client *upstream.Client, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewDefault("puppet")
	}
	return &Aggregator{client: client, log: log}
}

// Node is one inventory node record.
type Node struct {
	Name             string `json:"name"`
	Deactivated      string `json:"deactivated"`
	CatalogTimestamp string `json:"catalog_timestamp"`
	FactsTimestamp   string `json:"facts_timestamp"`
}

// Device joins a node record with its facts. When one of the two calls
// failed, Err carries the upstream error text and the failed side is empty;
// the page renders degraded instead of failing.
type Device struct {
	Hostname string          `json:"hostname"`
	Node     json.RawMessage `json:"node"`
	Facts    json.RawMessage `json:"facts"`
	Err      string          `json:"error,omitempty"`
}

// Fact returns the value of the named fact, or "" when absent. Facts arrive
// as a [{name, value}] array of free-form documents.
func (d Device) Fact(name string) string {
	result := gjson.GetBytes(d.Facts, fmt.Sprintf(`#(name=="%s").value`, name))
	return result.String()
}

// NodeName returns the node record's name field, or "".
func (d Device) NodeName() string {
	return gjson.GetBytes(d.Node, "name").String()
}

// GetDevice fetches the node record and its facts concurrently and joins
// them positionally. Either call failing still resolves the device with Err
// set; a join yielding the wrong result count is a hard error.
func (a *Aggregator) GetDevice(ctx context.Context, hostname string) (Device, error) {
	escaped := url.PathEscape(hostname)
	results := upstream.Parallel(ctx,
		a.fetch("/nodes/"+escaped),
		a.fetch("/nodes/"+escaped+"/facts"),
	)
	if len(results) != 2 {
		return Device{}, fmt.Errorf("could not retrieve host and facts from inventory: got %d results", len(results))
	}

	device := Device{Hostname: hostname}
	if results[0].Err != nil {
		a.log.WithContext(ctx).WithError(results[0].Err).Warn("inventory node lookup failed")
		device.Err = results[0].Err.Error()
	} else {
		device.Node = results[0].Data
	}
	if results[1].Err != nil {
		a.log.WithContext(ctx).WithError(results[1].Err).Warn("inventory facts lookup failed")
		if device.Err == "" {
			device.Err = results[1].Err.Error()
		}
	} else {
		device.Facts = results[1].Data
	}
	return device, nil
}

// GetFacts fetches the facts document for one node.
func (a *Aggregator) GetFacts(ctx context.Context, hostname string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := a.client.GetJSON(ctx, "/nodes/"+url.PathEscape(hostname)+"/facts", &raw); err != nil {
		return nil, fmt.Errorf("fetch facts for %s: %w", hostname, err)
	}
	return raw, nil
}

// ListNodes returns the Linux nodes known to the inventory.
func (a *Aggregator) ListNodes(ctx context.Context) ([]Node, error) {
	query := url.QueryEscape(`["=", ["fact", "kernel"], "Linux"]`)
	var nodes []Node
	if err := a.client.GetJSON(ctx, "/nodes?query="+query, &nodes); err != nil {
		return nil, fmt.Errorf("list inventory nodes: %w", err)
	}
	return nodes, nil
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
