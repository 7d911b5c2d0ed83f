// Package api exposes stored runs, backtest execution and metrics over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quantlab/verdict/internal/backtest"
	"github.com/quantlab/verdict/internal/core"
	"github.com/quantlab/verdict/internal/metrics"
	"github.com/quantlab/verdict/internal/service"
	"github.com/quantlab/verdict/internal/storage/run"
	"github.com/quantlab/verdict/internal/strategy"
	"go.uber.org/zap"
)

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	MetricsPath string // empty disables the metrics endpoint
}

// Server is the HTTP server.
type Server struct {
	httpServer *http.Server
	svc        *service.Service
	logger     *zap.Logger
	mux        *http.ServeMux
}

// NewServer creates an HTTP server over the given service.
func NewServer(cfg Config, svc *service.Service, reg *metrics.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		svc:    svc,
		logger: logger,
		mux:    mux,
	}

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)

	if cfg.MetricsPath != "" && reg != nil {
		mux.Handle("GET "+cfg.MetricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the route multiplexer, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := run.ListFilter{
		Symbol: q.Get("symbol"),
		Status: core.RunStatus(q.Get("status")),
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		filter.Limit = limit
	}

	runs, err := s.svc.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	record, err := s.svc.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, core.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// backtestRequest is the POST /api/backtest body. The strategy field uses the
// same JSON definition format as the CLI.
type backtestRequest struct {
	Strategy       json.RawMessage `json:"strategy"`
	Symbol         string          `json:"symbol"`
	From           string          `json:"from"` // YYYY-MM-DD
	To             string          `json:"to"`
	Timeframe      string          `json:"timeframe"`
	RunStage2      bool            `json:"run_stage2"`
	InitialCapital float64         `json:"initial_capital"`
	LotSize        float64         `json:"lot_size"`
	Leverage       float64         `json:"leverage"`
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req backtestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding request: %w", err))
		return
	}

	strat, err := strategy.ParseStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	period, err := parsePeriod(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	timeframe := core.Timeframe(req.Timeframe)
	if !timeframe.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown timeframe %q", req.Timeframe))
		return
	}

	result, err := s.svc.RunBacktest(r.Context(), strat, backtest.Request{
		Symbol:          req.Symbol,
		Period:          period,
		Stage1Timeframe: timeframe,
		RunStage2:       req.RunStage2,
		InitialCapital:  req.InitialCapital,
		LotSize:         req.LotSize,
		Leverage:        req.Leverage,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parsePeriod(from, to string) (core.Period, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid from date (expected YYYY-MM-DD): %w", err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return core.Period{}, fmt.Errorf("invalid to date (expected YYYY-MM-DD): %w", err)
	}
	if !end.After(start) {
		return core.Period{}, fmt.Errorf("end date must be after start date")
	}
	return core.Period{Start: start, End: end}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
