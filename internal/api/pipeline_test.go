package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pris83/retirement-calculator/internal/bus"
	"github.com/Pris83/retirement-calculator/internal/cache"
	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/loader"
	"github.com/Pris83/retirement-calculator/internal/maintenance"
	"github.com/Pris83/retirement-calculator/internal/plan"
	"github.com/Pris83/retirement-calculator/internal/policy"
	"github.com/Pris83/retirement-calculator/internal/repository"
	"github.com/Pris83/retirement-calculator/internal/worker"
)

// newPipeline wires the full stack the way cmd/retirement does:
// CSV seed -> store -> caches -> calculation -> event bus -> audit worker -> history.
func newPipeline(t *testing.T, policyRules ...string) *Server {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	depositsCSV := filepath.Join(dir, "deposits.csv")
	ratesCSV := filepath.Join(dir, "rates.csv")
	writeFile(t, depositsCSV, "lifestyleType,monthlyDeposit\nsimple,1000.00\nfancy,3000.00\nmodest,1500.00\n")
	writeFile(t, ratesCSV, "lifestyleType,interestRate\nsimple,4.0\nfancy,5.0\nmodest,4.5\n")

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: filepath.Join(dir, "pipeline.db")})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	caches, err := cache.NewPair(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	require.NoError(t, err)
	t.Cleanup(func() { caches.Close() })

	eventBus, err := bus.New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 100})
	require.NoError(t, err)
	t.Cleanup(func() { eventBus.Close() })

	rules, err := policy.New(policyRules)
	require.NoError(t, err)

	require.NoError(t, loader.Run(ctx, domain.LoaderConfig{DepositsCSV: depositsCSV, InterestRatesCSV: ratesCSV},
		repo, caches.Deposits, caches.InterestRates))

	audit := worker.NewWorker(eventBus, repo)
	require.NoError(t, audit.Start())
	t.Cleanup(func() { audit.Stop() })

	calc := plan.NewService(caches.Deposits, caches.InterestRates, domain.PlanConfig{MinAge: 18},
		plan.WithPolicy(rules),
		plan.WithEventBus(eventBus),
	)
	maint := maintenance.NewService(caches.Deposits, caches.InterestRates, repo, eventBus)

	srv := NewServer(domain.ServerConfig{Host: "localhost", Port: 0}, calc, maint, repo, caches.Deposits, eventBus, "pipeline")
	srv.SetReady(true)
	return srv
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func serve(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", mimeJSON)
	}
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func TestPipelineCalculationIsAudited(t *testing.T) {
	srv := newPipeline(t)

	rr := serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":40,"retirementAge":65,"interestRate":7.5,"lifestyleType":"Modest"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"futureValue":1315891.31`)

	var history struct {
		Calculations []HistoryEntry `json:"calculations"`
		Count        int            `json:"count"`
	}
	require.Eventually(t, func() bool {
		rr := serve(srv, http.MethodGet, "/retirement-plans/history", "")
		if rr.Code != http.StatusOK || json.Unmarshal(rr.Body.Bytes(), &history) != nil {
			return false
		}
		return history.Count == 1
	}, 2*time.Second, 20*time.Millisecond)

	entry := history.Calculations[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "modest", entry.LifestyleType)
	assert.Equal(t, json.Number("1500.00"), entry.MonthlyDeposit)
	assert.Equal(t, json.Number("1315891.31"), entry.FutureValue)
}

func TestPipelineCachedRatesFromCSV(t *testing.T) {
	srv := newPipeline(t)

	rr := serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":30,"retirementAge":65,"lifestyleType":"fancy"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"interestRate":5`)
	assert.Contains(t, rr.Body.String(), `"futureValue":3408277.31`)

	rr = serve(srv, http.MethodGet, "/cache/all", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var entries map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	assert.Equal(t, "3000.00", entries["fancy:deposit"])
	assert.Equal(t, "5", entries["fancy:interest"])
	assert.Len(t, entries, 6)
}

func TestPipelineRefreshThenCalculate(t *testing.T) {
	srv := newPipeline(t)

	require.Equal(t, http.StatusOK, serve(srv, http.MethodPost, "/cache/refreshAll", "").Code)

	rr := serve(srv, http.MethodGet, "/cache/get/simple", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "LifestyleType: simple, Amount: 1000.00")

	rr = serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":30,"retirementAge":65,"interestRate":5,"lifestyleType":"simple"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"futureValue":1136092.44`)
}

func TestPipelinePolicyRejection(t *testing.T) {
	srv := newPipeline(t, "retirement_age <= 70", "lifestyle_type != 'modest' || interest_rate < 0.0 || interest_rate <= 6.0")

	rr := serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":30,"retirementAge":75,"lifestyleType":"fancy"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), domain.CodeInvalidInput)

	rr = serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":40,"retirementAge":65,"interestRate":7.5,"lifestyleType":"modest"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(srv, http.MethodPost, "/retirement-plans/calculate",
		`{"currentAge":40,"retirementAge":65,"lifestyleType":"modest"}`)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}
