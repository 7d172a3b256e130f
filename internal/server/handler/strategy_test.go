package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/oppbot/internal/catalog"
	"github.com/alanyoungcy/oppbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestMux(t *testing.T) (*http.ServeMux, *catalog.Catalog) {
	t.Helper()
	cat := catalog.New(testLogger())
	h := NewStrategyHandler(cat, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/strategies", h.List)
	mux.HandleFunc("POST /api/strategies", h.Register)
	mux.HandleFunc("GET /api/strategies/top", h.TopPerformers)
	mux.HandleFunc("GET /api/strategies/{id}", h.Get)
	mux.HandleFunc("POST /api/strategies/{id}/activate", h.Activate)
	mux.HandleFunc("POST /api/strategies/{id}/deactivate", h.Deactivate)
	return mux, cat
}

func TestRegisterAndGetStrategy(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"name":"arb-main","category":"arbitrage","risk_tier":"low","priority":5,"enabled":true}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created["id"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategies/"+created["id"], nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got domain.StrategyRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "arb-main", got.Name)
	assert.Equal(t, domain.CategoryArbitrage, got.Category)
	assert.True(t, got.Enabled)
}

func TestRegisterRejectsUnknownCategory(t *testing.T) {
	mux, _ := newTestMux(t)

	body := `{"name":"x","category":"time_travel"}`
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/strategies", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownStrategyIs404(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategies/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivateDeactivateRoundTrip(t *testing.T) {
	mux, cat := newTestMux(t)

	id, err := cat.Register(domain.StrategySpec{
		Name:     "liq",
		Category: domain.CategoryLiquidation,
		Enabled:  true,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/strategies/"+id+"/deactivate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := cat.Get(id)
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/strategies/"+id+"/activate", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got, err = cat.Get(id)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
}

func TestListStrategies(t *testing.T) {
	mux, cat := newTestMux(t)

	for _, name := range []string{"a", "b", "c"} {
		_, err := cat.Register(domain.StrategySpec{
			Name:     name,
			Category: domain.CategoryArbitrage,
			Enabled:  true,
		})
		require.NoError(t, err)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/strategies", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Strategies []domain.StrategyRecord `json:"strategies"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Strategies, 3)
}
