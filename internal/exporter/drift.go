// Package exporter batches and ships quorum-disagreement events to an operator-configured
// webhook, so divergence between "honest" upstreams can be investigated outside of log
// scraping.
package exporter

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DriftEvent records one logical call that reached quorum despite at least one disagreeing
// provider — the non-fatal "disagreement with quorum reached" case from §7.
type DriftEvent struct {
	ChainID        string            `json:"chain_id"`
	Method         string            `json:"method"`
	AgreedValue    json.RawMessage   `json:"agreed_value"`
	AgreedProvider []string          `json:"agreed_providers"`
	Disagreed      map[string]string `json:"disagreed_providers"`
	ObservedAt     time.Time         `json:"observed_at"`
}

// Config configures the webhook sink and batching cadence.
type Config struct {
	Enabled        bool
	WebhookURL     string
	WebhookAPIKey  string
	BatchSize      int
	ExportInterval time.Duration
}

// DriftExporter batches DriftEvents in memory and flushes them to the configured webhook
// either when the batch fills or on a fixed interval, whichever comes first.
type DriftExporter struct {
	cfg        Config
	httpClient *http.Client
	log        *logrus.Entry

	mu         sync.Mutex
	batch      []DriftEvent
	lastExport time.Time

	cancel context.CancelFunc
}

// New constructs a DriftExporter and starts its background flush loop. Callers must call
// Close to stop the loop and flush any remaining batch.
func New(cfg Config, log *logrus.Entry) *DriftExporter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}

	e := &DriftExporter{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				IdleConnTimeout: 90 * time.Second,
			},
		},
		log: log,
	}

	if cfg.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		go e.periodicFlush(ctx)
	}
	return e
}

// Record adds one drift event to the batch. If the batch is now full, it is flushed
// immediately instead of waiting for the next tick.
func (e *DriftExporter) Record(event DriftEvent) {
	if !e.cfg.Enabled {
		return
	}

	e.mu.Lock()
	e.batch = append(e.batch, event)
	full := len(e.batch) >= e.cfg.BatchSize
	e.mu.Unlock()

	if full {
		go e.flush()
	}
}

func (e *DriftExporter) periodicFlush(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ExportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.flush()
		case <-ctx.Done():
			e.flush()
			return
		}
	}
}

func (e *DriftExporter) flush() {
	e.mu.Lock()
	if len(e.batch) == 0 {
		e.mu.Unlock()
		return
	}
	events := e.batch
	e.batch = nil
	e.lastExport = time.Now()
	e.mu.Unlock()

	if err := e.send(events); err != nil {
		e.log.WithError(err).Warn("drift exporter: failed to ship batch")
	}
}

func (e *DriftExporter) send(events []DriftEvent) error {
	if e.cfg.WebhookURL == "" {
		return nil
	}

	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("exporter: marshaling drift batch: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("exporter: building webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.WebhookAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.WebhookAPIKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("exporter: posting drift batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("exporter: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close stops the background flush loop and ships any remaining batch synchronously.
func (e *DriftExporter) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.flush()
}
