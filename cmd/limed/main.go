package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/glassbox-ml/lime/internal/adapter"
	"github.com/glassbox-ml/lime/internal/auth"
	"github.com/glassbox-ml/lime/internal/cache"
	"github.com/glassbox-ml/lime/internal/dataset"
	"github.com/glassbox-ml/lime/internal/explain"
	"github.com/glassbox-ml/lime/internal/metrics"
	"github.com/glassbox-ml/lime/internal/selector"
	"github.com/glassbox-ml/lime/internal/store"
	"github.com/glassbox-ml/lime/pkg/canonical"
	"github.com/glassbox-ml/lime/pkg/otel"
)

// Server wires the explainer, result store, and explanation cache behind the
// HTTP API.
type Server struct {
	explainer   *explain.Explainer
	resultStore store.Store
	resultTTL   time.Duration
	memo        *cache.ResultCache[string, []store.Record]
	metrics     *metrics.Metrics
	limiter     *rate.Limiter
	metricsAuth struct {
		enabled  bool
		user     string
		password string
	}
}

func main() {
	ctx := context.Background()

	// Training data and model define the explainer for this process.
	trainPath := getEnv("TRAINING_DATA", "")
	if trainPath == "" {
		log.Fatal("TRAINING_DATA is required (CSV with header)")
	}
	response := getEnv("RESPONSE_COLUMN", "")
	if response == "" {
		log.Fatal("RESPONSE_COLUMN is required")
	}

	training, _, err := dataset.LoadCSV(trainPath, response)
	if err != nil {
		log.Fatalf("Failed to load training data: %v", err)
	}

	modelPath := getEnv("MODEL_SPEC", "")
	if modelPath == "" {
		log.Fatal("MODEL_SPEC is required (JSON model spec)")
	}
	model, err := adapter.LoadModelSpec(modelPath)
	if err != nil {
		log.Fatalf("Failed to load model: %v", err)
	}

	m := metrics.New()

	nBins := getEnvInt("N_BINS", 4)
	explainer, err := explain.New(training, response, model, nBins)
	if err != nil {
		log.Fatalf("Failed to construct explainer: %v", err)
	}
	explainer.WithMetrics(m)

	// Result store backend.
	var resultStore store.Store
	switch backend := getEnv("STORE_BACKEND", "memory"); backend {
	case "memory":
		resultStore = store.NewMemoryStore(getEnv("STORE_SNAPSHOT", "data/explanations.json"))
	case "redis":
		resultStore, err = store.NewRedisStore(getEnv("REDIS_ADDR", "localhost:6379"),
			getEnv("REDIS_PASSWORD", ""), getEnvInt("REDIS_DB", 0))
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	case "postgres":
		resultStore, err = store.NewPostgresStore(getEnv("POSTGRES_CONN", ""))
		if err != nil {
			log.Fatalf("Failed to create Postgres store: %v", err)
		}
	default:
		log.Fatalf("Unknown STORE_BACKEND: %s", backend)
	}

	memo, err := cache.New[string, []store.Record](getEnvInt("CACHE_SIZE", 1024), 15*time.Minute)
	if err != nil {
		log.Fatalf("Failed to create explanation cache: %v", err)
	}

	// Optional tracing.
	if endpoint := getEnv("OTEL_COLLECTOR", ""); endpoint != "" {
		cfg := otel.DefaultConfig("limed")
		cfg.CollectorEndpoint = endpoint
		tp, err := otel.InitTracer(ctx, cfg)
		if err != nil {
			log.Printf("Tracing disabled: %v", err)
		} else {
			defer otel.Shutdown(context.Background(), tp)
		}
	}

	tokenRate := getEnvInt("TOKEN_RATE", 20)
	srv := &Server{
		explainer:   explainer,
		resultStore: resultStore,
		resultTTL:   time.Duration(getEnvInt("RESULT_TTL_HOURS", 24)) * time.Hour,
		memo:        memo,
		metrics:     m,
		limiter:     rate.NewLimiter(rate.Limit(tokenRate), tokenRate*2),
	}
	srv.metricsAuth.enabled = getEnv("METRICS_USER", "") != ""
	srv.metricsAuth.user = getEnv("METRICS_USER", "")
	srv.metricsAuth.password = getEnv("METRICS_PASS", "")

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/explain", srv.handleExplain)
	mux.HandleFunc("/v1/explanations/", srv.handleGetBatch)
	mux.Handle("/metrics", srv.metricsHandler())
	mux.HandleFunc("/health", handleHealth)

	// Optional API-key gate; /health and /metrics keep their own access rules.
	var handler http.Handler = mux
	if keys := getEnv("API_KEYS", ""); keys != "" {
		handler = auth.Middleware(auth.DefaultConfig(strings.Split(keys, ",")))(mux)
	}

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // large permutation sets take a while
		IdleTimeout:  60 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting limed on port %s (model kind: %s)", port, explainer.Kind())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	log.Println("Shutting down limed...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := resultStore.Close(); err != nil {
		log.Printf("Error closing result store: %v", err)
	}
	log.Println("limed stopped")
}

// explainRequest is the /v1/explain request body.
type explainRequest struct {
	Instances []instancePayload `json:"instances"`
	Options   optionsPayload    `json:"options"`
}

type instancePayload struct {
	ID  string      `json:"id,omitempty"`
	Row dataset.Row `json:"row"`
}

type optionsPayload struct {
	NPermutations  int      `json:"n_permutations,omitempty"`
	DistFn         string   `json:"dist_fun,omitempty"`
	KernelWidth    float64  `json:"kernel_width,omitempty"`
	NFeatures      int      `json:"n_features,omitempty"`
	FeatureSelect  string   `json:"feature_select,omitempty"`
	Labels         []string `json:"labels,omitempty"`
	TopLabels      int      `json:"n_labels,omitempty"`
	Seed           int64    `json:"seed,omitempty"`
	PredictTimeout string   `json:"predict_timeout,omitempty"` // Go duration string
}

// explainResponse is the /v1/explain response body.
type explainResponse struct {
	BatchID string          `json:"batch_id"`
	Records []store.Record  `json:"records"`
	Errors  []instanceError `json:"errors,omitempty"`
	Cached  bool            `json:"cached"`
}

type instanceError struct {
	InstanceID string `json:"instance_id"`
	Error      string `json:"error"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", "10")
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 8<<20)) // 8MB limit
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	var req explainRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Instances) == 0 {
		http.Error(w, "No instances supplied", http.StatusBadRequest)
		return
	}

	opts, err := req.Options.toOptions()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Canonical batch ID: field order and float formatting in the client
	// do not change it, so repeat requests with a fixed seed memoize.
	batchID, err := canonical.Fingerprint(req)
	if err != nil {
		http.Error(w, "Failed to fingerprint request", http.StatusBadRequest)
		return
	}
	batchID = batchID[:16]
	if recs, ok := s.memo.Get(batchID); ok {
		s.metrics.CacheHits.Inc()
		writeJSON(w, http.StatusOK, explainResponse{BatchID: batchID, Records: recs, Cached: true})
		return
	}
	s.metrics.CacheMisses.Inc()

	instances := make([]explain.Instance, len(req.Instances))
	for i, p := range req.Instances {
		instances[i] = explain.Instance{ID: p.ID, Row: p.Row}
	}

	ctx, span := otel.StartSpan(r.Context(), "limed", "explain.batch",
		otel.ExplainAttributes(string(s.explainer.Kind()), len(instances),
			opts.NPermutations, string(opts.FeatureSelect), opts.KernelWidth)...)
	results, err := s.explainer.Explain(ctx, instances, opts)
	if err != nil {
		otel.RecordError(span, err)
		span.End()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	span.End()

	resp := explainResponse{BatchID: batchID, Records: store.Flatten(results)}
	for _, res := range results {
		if res.Err != nil {
			resp.Errors = append(resp.Errors, instanceError{InstanceID: res.InstanceID, Error: res.Err.Error()})
		}
	}

	// Persist and memoize; storage failure is not fatal to the response.
	if err := s.resultStore.Put(r.Context(), batchID, resp.Records, s.resultTTL); err != nil {
		log.Printf("Failed to store batch %s: %v", batchID, err)
	}
	if opts.Seed != 0 && len(resp.Errors) == 0 {
		s.memo.Set(batchID, resp.Records)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	batchID := r.URL.Path[len("/v1/explanations/"):]
	if batchID == "" {
		http.Error(w, "Missing batch ID", http.StatusBadRequest)
		return
	}

	recs, err := s.resultStore.Get(r.Context(), batchID)
	if err != nil {
		log.Printf("Store error for batch %s: %v", batchID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		http.Error(w, "Batch not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{BatchID: batchID, Records: recs, Cached: true})
}

func (p optionsPayload) toOptions() (explain.Options, error) {
	opts := explain.Options{
		NPermutations: p.NPermutations,
		DistFn:        p.DistFn,
		KernelWidth:   p.KernelWidth,
		NFeatures:     p.NFeatures,
		FeatureSelect: selector.Strategy(p.FeatureSelect),
		Labels:        p.Labels,
		TopLabels:     p.TopLabels,
		Seed:          p.Seed,
	}
	if p.PredictTimeout != "" {
		d, err := time.ParseDuration(p.PredictTimeout)
		if err != nil {
			return opts, fmt.Errorf("invalid predict_timeout: %w", err)
		}
		opts.PredictTimeout = d
	}
	return opts, nil
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.Handler()
	if !s.metricsAuth.enabled {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
