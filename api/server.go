// Package api provides the HTTP REST API server for openrank.
//
// It exposes the strategy catalogue, single-company analysis, rankings and
// configuration status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/seenimoa/openrank/internal/agent"
	"github.com/seenimoa/openrank/internal/config"
	"github.com/seenimoa/openrank/internal/llm"
	"github.com/seenimoa/openrank/internal/strategy"
	"github.com/seenimoa/openrank/pkg/models"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	factory  *strategy.Factory
	llm      *llm.Router // nil when no provider is configured
	log      zerolog.Logger
	validate *validator.Validate
}

// NewServer builds the LLM router and the strategy factory from cfg.
func NewServer(cfg *config.Config, log zerolog.Logger) (*Server, error) {
	factory, router, err := BuildFactory(cfg, log)
	if err != nil {
		return nil, err
	}
	return newServer(cfg, factory, router, log), nil
}

// BuildFactory registers every strategy, the AI one included, behind the
// LLM router described by cfg. A missing LLM provider is not fatal: the
// router is then nil and the AI strategy ranks with its heuristic fallback.
func BuildFactory(cfg *config.Config, log zerolog.Logger) (*strategy.Factory, *llm.Router, error) {
	router, err := llm.NewRouterFromConfig(cfg, log)
	if err != nil && !errors.Is(err, llm.ErrNoProviders) {
		return nil, nil, fmt.Errorf("LLM setup failed: %w", err)
	}
	if router == nil {
		log.Warn().Msg("no LLM provider configured, AI rankings will use the heuristic fallback")
	}

	factory := strategy.NewFactory(strategy.WithLogger(log))
	var gen agent.Generator
	if router != nil {
		gen = router
	}
	agent.Register(factory, gen,
		agent.WithConfig(agent.ConfigFrom(cfg)),
		agent.WithLogger(log),
	)
	return factory, router, nil
}

func newServer(cfg *config.Config, factory *strategy.Factory, router *llm.Router, log zerolog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		factory:  factory,
		llm:      router,
		log:      log.With().Str("component", "api").Logger(),
		validate: validator.New(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.cfg.API.RequestTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Strategies
		r.Get("/strategies", s.handleListStrategies)
		r.Get("/strategies/{type}/rational", s.handleRational)
		r.Post("/strategies/{type}/analyze", s.handleAnalyze)

		// Rankings
		r.Post("/rankings/{type}", s.handleRanking)

		// LLM
		r.Get("/llm/health", s.handleLLMHealth)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StrategyInfo describes one registered strategy.
type StrategyInfo struct {
	Type models.StrategyType `json:"type"`
	Name string              `json:"name"`
}

// AnalyzeRequest is the body for POST /api/v1/strategies/{type}/analyze.
type AnalyzeRequest struct {
	Company *models.CompanyData   `json:"company" validate:"required"`
	Params  models.StrategyParams `json:"params"`
}

// AnalyzeResponse wraps a single-company verdict.
type AnalyzeResponse struct {
	Strategy models.StrategyType     `json:"strategy"`
	Ticker   string                  `json:"ticker"`
	Valid    bool                    `json:"valid"`
	Analysis models.StrategyAnalysis `json:"analysis"`
}

// RankingRequest is the body for POST /api/v1/rankings/{type}.
type RankingRequest struct {
	Companies []models.CompanyData  `json:"companies" validate:"required,min=1"`
	Params    models.StrategyParams `json:"params"`
}

// RankingResponse is the payload of a ranking.
type RankingResponse struct {
	Strategy models.StrategyType        `json:"strategy"`
	Count    int                        `json:"count"`
	Results  []models.RankBuilderResult `json:"results"`
	Elapsed  string                     `json:"elapsed"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var providers []string
	if s.llm != nil {
		providers = s.llm.ProviderNames()
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":     "ok",
			"version":    Version,
			"strategies": len(s.factory.Types()),
			"providers":  providers,
			"time":       time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	types := s.factory.Types()
	out := make([]StrategyInfo, 0, len(types))
	for _, t := range types {
		st, err := s.factory.Create(t)
		if err != nil {
			continue
		}
		out = append(out, StrategyInfo{Type: t, Name: st.Name()})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleRational(w http.ResponseWriter, r *http.Request) {
	t := models.StrategyType(chi.URLParam(r, "type"))
	p, err := paramsFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := s.factory.Rational(t, p)
	if err != nil {
		writeStrategyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    map[string]string{"strategy": string(t), "rational": text},
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	t := models.StrategyType(chi.URLParam(r, "type"))

	var req AnalyzeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := s.factory.Create(t)
	if err != nil {
		writeStrategyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: AnalyzeResponse{
			Strategy: t,
			Ticker:   req.Company.Ticker,
			Valid:    st.ValidateCompanyData(req.Company, req.Params),
			Analysis: st.RunAnalysis(req.Company, req.Params),
		},
	})
}

func (s *Server) handleRanking(w http.ResponseWriter, r *http.Request) {
	t := models.StrategyType(chi.URLParam(r, "type"))

	var req RankingRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Params.Limit <= 0 {
		req.Params.Limit = s.cfg.Ranking.DefaultLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.API.RequestTimeout)
	defer cancel()

	start := time.Now()
	results, err := s.factory.Rank(ctx, t, req.Companies, req.Params)
	if err != nil {
		s.log.Error().Err(err).Str("strategy", string(t)).Msg("ranking failed")
		writeStrategyError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: RankingResponse{
			Strategy: t,
			Count:    len(results),
			Results:  results,
			Elapsed:  time.Since(start).Round(time.Millisecond).String(),
		},
	})
}

func (s *Server) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNoProviders.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	status := make(map[string]string)
	healthy := true
	for name, err := range s.llm.HealthCheck(ctx) {
		if err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, APIResponse{Success: healthy, Data: status})
}

// ============================================================
// Helpers
// ============================================================

func (s *Server) decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// paramsFromQuery reads the ranking knobs a rational depends on.
func paramsFromQuery(r *http.Request) (models.StrategyParams, error) {
	q := r.URL.Query()
	p := models.StrategyParams{
		RiskTolerance: models.RiskTolerance(q.Get("risk_tolerance")),
		CompanySize:   models.CompanySize(q.Get("company_size")),
		AssetType:     models.AssetType(q.Get("asset_type")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid limit %q", v)
		}
		p.Limit = n
	}
	if v := q.Get("technical"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid technical flag %q", v)
		}
		p.UseTechnicalAnalysis = b
	}
	return p, nil
}

func writeStrategyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, strategy.ErrUnknownStrategy):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request timed out")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
