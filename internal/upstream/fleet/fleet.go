// Package fleet joins the full inventory node list with per-node facts,
// the monitoring client list and the cached device list into one view for
// the fleet listing page.
package fleet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cloudykangaroo/orchestrate/internal/credstore"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/puppet"
	"github.com/cloudykangaroo/orchestrate/internal/upstream/sensu"
)

const deviceListKey = "device.list"

// Aggregator produces the combined fleet listing.
type Aggregator struct {
	inventory  *puppet.Aggregator
	monitoring *sensu.Aggregator
	store      credstore.Store
	log        *logging.Logger
}

// New creates a fleet aggregator.
func New(inventory *puppet.Aggregator, monitoring *sensu.Aggregator, store credstore.Store, log *logging.Logger) *Aggregator {
	if log == nil {
		log = logging.NewDefault("fleet")
	}
	return &Aggregator{inventory: inventory, monitoring: monitoring, store: store, log: log}
}

// NodeFacts pairs one inventory node with its facts document.
type NodeFacts struct {
	Hostname string          `json:"hostname"`
	Node     puppet.Node     `json:"node"`
	Facts    json.RawMessage `json:"facts"`
}

// Listing is the combined fleet view.
type Listing struct {
	Devices           []NodeFacts     `json:"devices"`
	MonitoringClients json.RawMessage `json:"monitoring_clients"`
	CachedDeviceList  string          `json:"cached_device_list,omitempty"`
}

// ListDevices fans out one facts call per inventory node plus the
// monitoring client list plus the cached device list, with no concurrency
// cap beyond the upstream's own capacity. Unlike the two-call aggregators
// this join is first-error-wins: any failing call aborts the whole listing.
func (a *Aggregator) ListDevices(ctx context.Context) (Listing, error) {
	nodes, err := a.inventory.ListNodes(ctx)
	if err != nil {
		return Listing{}, fmt.Errorf("fleet listing: %w", err)
	}

	listing := Listing{Devices: make([]NodeFacts, len(nodes))}

	g, gctx := errgroup.WithContext(ctx)

	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			facts, err := a.inventory.GetFacts(gctx, node.Name)
			if err != nil {
				return err
			}
			listing.Devices[i] = NodeFacts{Hostname: node.Name, Node: node, Facts: facts}
			return nil
		})
	}

	g.Go(func() error {
		clients, err := a.monitoring.ListClientsRaw(gctx)
		if err != nil {
			return err
		}
		listing.MonitoringClients = clients
		return nil
	})

	g.Go(func() error {
		cached, err := a.store.Get(gctx, deviceListKey)
		if errors.Is(err, credstore.ErrMiss) {
			return nil
		}
		if err != nil {
			return err
		}
		listing.CachedDeviceList = cached
		return nil
	})

	if err := g.Wait(); err != nil {
		a.log.WithContext(ctx).WithError(err).Error("fleet listing fan-out failed")
		return Listing{}, fmt.Errorf("fleet listing: %w", err)
	}
	return listing, nil
}
