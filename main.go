package main

import (
	"bufio"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"solaris-cloud/internal/alerts"
	"solaris-cloud/internal/auth"
	"solaris-cloud/internal/broadcast"
	"solaris-cloud/internal/ingest"
	"solaris-cloud/internal/observability/metrics"
	"solaris-cloud/internal/reports"
	"solaris-cloud/internal/scoring"
	telemetry "solaris-cloud/internal/telemetry/domain"
	telemetrymemory "solaris-cloud/internal/telemetry/infrastructure/memory"
	telemetrypostgres "solaris-cloud/internal/telemetry/infrastructure/postgres"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	metrics.Init()

	var store telemetry.Store
	if cfg.Store == "memory" {
		store = telemetrymemory.NewSampleRepository()
		logger.Printf("using in-memory telemetry store")
	} else {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
		store = telemetrypostgres.NewSampleRepository(db)
	}

	alertsCfg, err := alerts.LoadConfig()
	if err != nil {
		logger.Fatalf("alerts config error: %v", err)
	}

	scorer := scoring.Disabled()
	if cfg.ScorerURL != "" {
		httpScorer, err := scoring.NewHTTPScorer(cfg.ScorerURL, scoring.WithTimeout(cfg.ScorerTimeout))
		if err != nil {
			logger.Fatalf("scorer error: %v", err)
		}
		scorer = httpScorer
	}

	engineOpts := []alerts.EngineOption{}
	if cfg.HumanizerURL != "" {
		humanizer, err := alerts.NewHTTPHumanizer(cfg.HumanizerURL, alerts.WithHumanizerTimeout(cfg.HumanizerTimeout))
		if err != nil {
			logger.Fatalf("humanizer error: %v", err)
		}
		engineOpts = append(engineOpts, alerts.WithHumanizer(humanizer))
	}

	cooldown := alerts.NewRegistry(alertsCfg.CooldownWindow)
	engine, err := alerts.NewEngine(alertsCfg, cooldown, scorer, engineOpts...)
	if err != nil {
		logger.Fatalf("alert engine error: %v", err)
	}

	hub := broadcast.NewHub(logger)
	observerHandler := broadcast.NewWSHandler(hub, logger)

	deviceHandler, err := ingest.NewDeviceHandler(store, hub, engine, logger, ingest.WithStoreTimeout(cfg.StoreTimeout))
	if err != nil {
		logger.Fatalf("device handler error: %v", err)
	}

	reportHandler, err := reports.NewHandler(store, alertsCfg.DustThreshold, logger)
	if err != nil {
		logger.Fatalf("report handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ws/device"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/ws/device", deviceHandler)
	mux.Handle("/ws/observe", observerHandler)
	reportHandler.Register(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL      string
	HTTPAddr         string
	Store            string
	StoreTimeout     time.Duration
	ScorerURL        string
	ScorerTimeout    time.Duration
	HumanizerURL     string
	HumanizerTimeout time.Duration
	JWTSecret        string
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		Store:            getenvDefault("STORE", "postgres"),
		StoreTimeout:     getenvDuration("STORE_TIMEOUT", 5*time.Second),
		ScorerURL:        getenvDefault("SCORER_URL", ""),
		ScorerTimeout:    getenvDuration("SCORER_TIMEOUT", 2*time.Second),
		HumanizerURL:     getenvDefault("HUMANIZER_URL", ""),
		HumanizerTimeout: getenvDuration("HUMANIZER_TIMEOUT", 2*time.Second),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.Store != "postgres" && cfg.Store != "memory" {
		log.Fatal("STORE must be postgres or memory")
	}
	if cfg.Store == "postgres" && cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
