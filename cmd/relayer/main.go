// Package main is the demo/health entry point for the RPC fabric: it wires one
// EndpointRegistry from environment configuration, exposes it over a tiny HTTP surface
// (send, health, status, metrics), and is the thing an operator actually runs to see the
// fabric behave against real upstreams.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/omahs/relayer/internal/chaintypes"
	"github.com/omahs/relayer/internal/config"
	"github.com/omahs/relayer/internal/exporter"
	"github.com/omahs/relayer/internal/kvcache"
	"github.com/omahs/relayer/internal/obs"
	"github.com/omahs/relayer/internal/registry"
)

var startTime = time.Now()

// serverConfig holds the demo binary's own settings, distinct from the per-chain
// RouterConfig the registry loads for each chain it serves.
type serverConfig struct {
	Port            string
	SupportedChains []string
	OtelEndpoint    string
	DriftWebhook    string
	RateLimitRPS    float64
	RateLimitBurst  int
}

func main() {
	setupLogging()
	cfg := loadServerConfig()

	reorgTable, err := config.LoadDefaultReorgTable()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load reorg-distance table")
	}

	cache := buildCache()
	metricsRegistry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(metricsRegistry)
	shutdownTracer := obs.InitTracer(cfg.OtelEndpoint)
	defer shutdownTracer()

	driftExporter := exporter.New(exporter.Config{
		Enabled:        cfg.DriftWebhook != "",
		WebhookURL:     cfg.DriftWebhook,
		WebhookAPIKey:  os.Getenv("DRIFT_WEBHOOK_API_KEY"),
		BatchSize:      getEnvInt("DRIFT_EXPORT_BATCH_SIZE", 20),
		ExportInterval: getDurationOrDefault("DRIFT_EXPORT_INTERVAL", time.Minute),
	}, logrus.NewEntry(logrus.StandardLogger()))
	defer driftExporter.Close()

	reg := registry.New(reorgTable, cache, registry.Observer{
		OnObservation:  metrics.ObserveCall,
		OnDisagreement: driftObserver(metrics, driftExporter),
		OnRateLimit:    metrics.ObserveRateLimit,
		OnInFlight:     metrics.SetInFlight,
	}, logrus.NewEntry(logrus.StandardLogger()))

	srv := newServer(cfg, reg, metricsRegistry)
	srv.start()
}

// driftObserver bridges the registry's chain-scoped disagreement callback into the drift
// exporter's event shape and the disagreement counter.
func driftObserver(metrics *obs.Metrics, drift *exporter.DriftExporter) func(chainID, method string, agreedValue json.RawMessage, agreedProviders []string, disagreed map[string]string) {
	return func(chainID, method string, agreedValue json.RawMessage, agreedProviders []string, disagreed map[string]string) {
		metrics.ObserveQuorumDisagreement(chainID, method)
		drift.Record(exporter.DriftEvent{
			ChainID:        chainID,
			Method:         method,
			AgreedValue:    agreedValue,
			AgreedProvider: agreedProviders,
			Disagreed:      disagreed,
			ObservedAt:     time.Now(),
		})
	}
}

func buildCache() kvcache.Cache {
	if getEnvBool("NODE_DISABLE_PROVIDER_CACHING", false) {
		return nil
	}
	if addr := strings.TrimSpace(os.Getenv("NODE_REDIS_ADDR")); addr != "" {
		logrus.WithField("addr", addr).Info("provider cache backed by redis")
		return kvcache.NewRedisCache(addr)
	}
	logrus.Info("provider cache backed by in-process LRU (no NODE_REDIS_ADDR set)")
	return kvcache.NewLRUCache(getEnvInt("NODE_LOCAL_CACHE_SIZE", 4096))
}

func setupLogging() {
	switch strings.ToLower(os.Getenv("LOG_FORMAT")) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func loadServerConfig() serverConfig {
	return serverConfig{
		Port:            getEnvOrDefault("PORT", "8080"),
		SupportedChains: splitCSV(getEnvOrDefault("SUPPORTED_CHAINS", "1")),
		OtelEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		DriftWebhook:    os.Getenv("DRIFT_WEBHOOK_URL"),
		RateLimitRPS:    getEnvFloat("RATE_LIMIT_RPS", 50.0),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 100),
	}
}

// server is the demo binary's thin HTTP wrapper around the registry.
type server struct {
	cfg        serverConfig
	registry   *registry.Registry
	httpServer *http.Server
	promReg    *prometheus.Registry
	rateLimit  *rate.Limiter
}

func newServer(cfg serverConfig, reg *registry.Registry, promReg *prometheus.Registry) *server {
	return &server{
		cfg:       cfg,
		registry:  reg,
		promReg:   promReg,
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
	}
}

// sendRequest is the JSON body accepted by POST /send.
type sendRequest struct {
	ChainID string `json:"chain_id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (s *server) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/send", s.handleSend)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.Handle("/metrics", promhttp.HandlerFor(s.promReg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithField("port", s.cfg.Port).Info("rpc fabric demo server starting")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logrus.WithError(err).Fatal("graceful shutdown failed")
	}
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.rateLimit.Allow() {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	requestID := uuid.New().String()
	log := logrus.WithField("request_id", requestID)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	router, err := s.registry.Get(chaintypes.ChainID(req.ChainID))
	if err != nil {
		log.WithError(err).Warn("failed to resolve router")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	ctx, span := obs.StartDispatch(ctx, req.ChainID, req.Method)
	defer span.End()

	result, err := router.Send(ctx, req.Method, req.Params)
	if err != nil {
		obs.RecordError(ctx, err)
		log.WithError(err).WithFields(logrus.Fields{"chain_id": req.ChainID, "method": req.Method}).Warn("dispatch failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(result)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
		"uptime": time.Since(startTime).String(),
	})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":           "operational",
		"uptime":           time.Since(startTime).String(),
		"supported_chains": s.cfg.SupportedChains,
	})
}
