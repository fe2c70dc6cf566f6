package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/app/system"
	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

var _ system.Service = (*Flusher)(nil)

// Flusher periodically snapshots the request instruments and emits one
// structured log line per interval. It is the only consumer of the
// aggregate view; nothing is persisted.
type Flusher struct {
	metrics  *Metrics
	log      *logging.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewFlusher creates a lifecycle-managed metrics flusher.
func NewFlusher(m *Metrics, interval time.Duration, log *logging.Logger) *Flusher {
	if log == nil {
		log = logging.NewDefault("metrics")
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Flusher{metrics: m, log: log, interval: interval}
}

func (f *Flusher) Name() string { return "metrics-flusher" }

func (f *Flusher) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.running = true
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				f.flush()
			}
		}
	}()

	f.log.Info("metrics flusher started")
	return nil
}

func (f *Flusher) Stop(ctx context.Context) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	cancel := f.cancel
	f.running = false
	f.cancel = nil
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.log.Info("metrics flusher stopped")
	return nil
}

func (f *Flusher) flush() {
	snap, err := f.metrics.Gather()
	if err != nil {
		f.log.WithError(err).Error("gather metrics for flush")
		return
	}

	avgMs := float64(0)
	if snap.DurationCount > 0 {
		avgMs = snap.DurationSumSecs / float64(snap.DurationCount) * 1000
	}

	f.log.WithFields(map[string]interface{}{
		"type":             "metrics",
		"requests_total":   snap.RequestCount,
		"duration_count":   snap.DurationCount,
		"duration_avg_ms":  avgMs,
		"interval_seconds": f.interval.Seconds(),
	}).Info("metrics output")
}
