package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/openrank/internal/agent"
	"github.com/seenimoa/openrank/internal/config"
	"github.com/seenimoa/openrank/internal/llm"
	"github.com/seenimoa/openrank/internal/strategy"
	"github.com/seenimoa/openrank/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func f(v float64) *float64 { return models.Float(v) }

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Ranking.DefaultLimit = 3
	cfg.API.RequestTimeout = time.Minute
	cfg.API.CORSOrigins = []string{"http://localhost:3000"}
	cfg.LLM.OpenAIKey = "sk-secret-value-1234"
	return cfg
}

// testServer wires the real factory and an AI strategy without an LLM.
func testServer(t *testing.T, router *llm.Router) *Server {
	t.Helper()
	factory := strategy.NewFactory()
	agent.Register(factory, nil)
	return newServer(testConfig(), factory, router, zerolog.Nop())
}

func dividendPayer(ticker string, score float64) models.CompanyData {
	return models.CompanyData{
		Ticker:       ticker,
		Name:         ticker + " SA",
		Sector:       "Energia Elétrica",
		CurrentPrice: 20,
		OverallScore: f(score),
		Financials: models.Financials{
			DY:              f(0.06),
			ROE:             f(0.14),
			CurrentRatio:    f(1.5),
			NetDebtToEquity: f(0.3),
			PL:              f(10),
			NetMargin:       f(0.08),
			MarketCap:       f(3e9),
		},
	}
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

// decodeData decodes the envelope and unmarshals its data into out.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return APIResponse{Success: raw.Success, Error: raw.Error}
}

type fakeProvider struct {
	name    string
	pingErr error
}

func (p *fakeProvider) Name() string     { return p.name }
func (p *fakeProvider) Models() []string { return []string{"fake-1"} }
func (p *fakeProvider) Stream(context.Context, *llm.Request) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Content: "ok", Done: true}
	close(ch)
	return ch, nil
}
func (p *fakeProvider) Ping(context.Context) error { return p.pingErr }

// ════════════════════════════════════════════════════════════════════
// Health & Catalogue
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv := testServer(t, nil)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var data map[string]any
		resp := decodeData(t, rec, &data)
		assert.True(t, resp.Success)
		assert.Equal(t, "ok", data["status"])
		assert.EqualValues(t, 9, data["strategies"])
	}
}

func TestListStrategies(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodGet, "/api/v1/strategies", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var list []StrategyInfo
	decodeData(t, rec, &list)
	require.Len(t, list, 9)
	assert.Equal(t, models.StrategyAI, list[0].Type)

	types := map[models.StrategyType]string{}
	for _, s := range list {
		types[s.Type] = s.Name
	}
	assert.Contains(t, types, models.StrategyGraham)
	assert.Contains(t, types, models.StrategyBarsi)
	assert.NotEmpty(t, types[models.StrategyFCD])
}

func TestRational(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/v1/strategies/ai/rational?limit=5&risk_tolerance=conservative&technical=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var data map[string]string
	decodeData(t, rec, &data)
	assert.Equal(t, "ai", data["strategy"])
	assert.Contains(t, data["rational"], "conservative")
	assert.Contains(t, data["rational"], "top 5 results")

	rec = do(t, srv, http.MethodGet, "/api/v1/strategies/astrology/rational", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/v1/strategies/graham/rational?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, srv, http.MethodGet, "/api/v1/strategies/graham/rational?technical=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// Analysis & Rankings
// ════════════════════════════════════════════════════════════════════

func TestAnalyzeDividendYield(t *testing.T) {
	c := dividendPayer("TAEE11", 80)
	rec := do(t, testServer(t, nil), http.MethodPost, "/api/v1/strategies/dividend_yield/analyze",
		AnalyzeRequest{Company: &c, Params: models.StrategyParams{MinYield: 0.04}})
	require.Equal(t, http.StatusOK, rec.Code)

	var out AnalyzeResponse
	resp := decodeData(t, rec, &out)
	assert.True(t, resp.Success)
	assert.Equal(t, "TAEE11", out.Ticker)
	assert.True(t, out.Analysis.IsEligible)
	require.NotNil(t, out.Analysis.Upside)
	assert.InDelta(t, 6.0, *out.Analysis.Upside, 1e-9)
}

func TestAnalyzeErrors(t *testing.T) {
	srv := testServer(t, nil)
	c := dividendPayer("TAEE11", 80)

	rec := do(t, srv, http.MethodPost, "/api/v1/strategies/graham/analyze", `{"params": {}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/strategies/graham/analyze", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/strategies/astrology/analyze", AnalyzeRequest{Company: &c})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeData(t, rec, nil)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unknown strategy type")
}

func TestRankingDeterministic(t *testing.T) {
	companies := []models.CompanyData{
		dividendPayer("TAEE11", 80),
		dividendPayer("TAEE3", 80),
		dividendPayer("EGIE3", 75),
		dividendPayer("CPLE6", 70),
		dividendPayer("SAPR4", 70),
	}
	rec := do(t, testServer(t, nil), http.MethodPost, "/api/v1/rankings/dividend_yield",
		RankingRequest{Companies: companies, Params: models.StrategyParams{MinYield: 0.04}})
	require.Equal(t, http.StatusOK, rec.Code)

	var out RankingResponse
	decodeData(t, rec, &out)
	assert.Equal(t, models.StrategyDividendYield, out.Strategy)
	assert.Equal(t, 3, out.Count, "default limit from config")

	roots := map[string]bool{}
	for _, r := range out.Results {
		root := r.Ticker[:4]
		assert.False(t, roots[root], "duplicate company %s", root)
		roots[root] = true
	}
}

func TestRankingAIFallsBackWithoutLLM(t *testing.T) {
	companies := []models.CompanyData{
		dividendPayer("TAEE11", 80),
		dividendPayer("EGIE3", 75),
		dividendPayer("SAPR4", 70),
		dividendPayer("ALUP11", 65),
	}
	rec := do(t, testServer(t, nil), http.MethodPost, "/api/v1/rankings/ai",
		RankingRequest{Companies: companies, Params: models.StrategyParams{Limit: 2, RiskTolerance: models.RiskConservative}})
	require.Equal(t, http.StatusOK, rec.Code)

	var out RankingResponse
	decodeData(t, rec, &out)
	require.Equal(t, 2, out.Count)
	for _, r := range out.Results {
		assert.Contains(t, r.Rational, "conservative investor")
		assert.Contains(t, r.KeyMetrics, "score")
	}
}

func TestRankingErrors(t *testing.T) {
	srv := testServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/v1/rankings/graham", RankingRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/v1/rankings/astrology",
		RankingRequest{Companies: []models.CompanyData{dividendPayer("TAEE11", 80)}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ════════════════════════════════════════════════════════════════════
// Config & LLM
// ════════════════════════════════════════════════════════════════════

func TestGetConfigMasksKeys(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk-secret-value-1234")

	var out ConfigResponse
	decodeData(t, rec, &out)
	assert.Equal(t, "sk-...234", out.Config.LLM.OpenAIKey)
	assert.False(t, out.LLMReady)
	assert.Len(t, out.Keys, 3)
}

func TestGetConfigKeys(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodGet, "/api/v1/config/keys", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var keys []config.KeyStatus
	decodeData(t, rec, &keys)
	require.Len(t, keys, 3)
	assert.True(t, keys[0].IsSet)
	assert.Equal(t, "sk-...234", keys[0].Masked)
	assert.False(t, keys[1].IsSet)
}

func TestLLMHealth(t *testing.T) {
	rec := do(t, testServer(t, nil), http.MethodGet, "/api/v1/llm/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	router := llm.NewRouter("fake")
	router.RegisterProvider(&fakeProvider{name: "fake"})
	rec = do(t, testServer(t, router), http.MethodGet, "/api/v1/llm/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]string
	decodeData(t, rec, &status)
	assert.Equal(t, map[string]string{"fake": "ok"}, status)

	router.RegisterProvider(&fakeProvider{name: "down", pingErr: errors.New("connection refused")})
	rec = do(t, testServer(t, router), http.MethodGet, "/api/v1/llm/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	decodeData(t, rec, &status)
	assert.Equal(t, "connection refused", status["down"])
}

func TestCORSPreflight(t *testing.T) {
	srv := testServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/strategies", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestParamsFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/x?limit=7&company_size=small_caps&asset_type=bdr&technical=1", nil)
	p, err := paramsFromQuery(req)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Limit)
	assert.Equal(t, models.SizeSmall, p.CompanySize)
	assert.Equal(t, models.AssetBDR, p.AssetType)
	assert.True(t, p.UseTechnicalAnalysis)

	_, err = paramsFromQuery(httptest.NewRequest(http.MethodGet, "/x?limit=-1", nil))
	assert.Error(t, err)
}

func TestListenAndServeShutsDown(t *testing.T) {
	srv := testServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), `"success":false`))
}
