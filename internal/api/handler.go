// Package api provides the HTTP API for the retirement calculator.
package api

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/Pris83/retirement-calculator/internal/domain"
	"github.com/Pris83/retirement-calculator/internal/maintenance"
	"github.com/Pris83/retirement-calculator/internal/money"
	"github.com/Pris83/retirement-calculator/internal/plan"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

// Handler contains HTTP handlers for the API.
type Handler struct {
	calc    *plan.Service
	maint   *maintenance.Service
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	version string
	ready   atomic.Bool
}

// NewHandler creates a new API handler.
func NewHandler(calc *plan.Service, maint *maintenance.Service, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		calc:    calc,
		maint:   maint,
		repo:    repo,
		cache:   cache,
		bus:     bus,
		version: version,
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	XMLName xml.Name `json:"-" xml:"error"`
	Status  string   `json:"status" xml:"status"`
	Message string   `json:"message" xml:"message"`
	Code    string   `json:"code,omitempty" xml:"code,omitempty"`
	Field   string   `json:"field,omitempty" xml:"field,omitempty"`
}

// CalculateRequest is the body of POST /retirement-plans/calculate.
type CalculateRequest struct {
	XMLName       xml.Name     `json:"-" xml:"Retirement"`
	CurrentAge    int          `json:"currentAge" xml:"currentAge"`
	RetirementAge int          `json:"retirementAge" xml:"retirementAge"`
	InterestRate  *json.Number `json:"interestRate,omitempty" xml:"interestRate,omitempty"`
	LifestyleType string       `json:"lifestyleType" xml:"lifestyleType"`
}

// CalculateResponse is the body of a successful calculation.
type CalculateResponse struct {
	XMLName        xml.Name    `json:"-" xml:"RetirementResult"`
	CurrentAge     int         `json:"currentAge" xml:"currentAge"`
	RetirementAge  int         `json:"retirementAge" xml:"retirementAge"`
	InterestRate   json.Number `json:"interestRate" xml:"interestRate"`
	LifestyleType  string      `json:"lifestyleType" xml:"lifestyleType"`
	MonthlyDeposit json.Number `json:"monthlyDeposit" xml:"monthlyDeposit"`
	FutureValue    json.Number `json:"futureValue" xml:"futureValue"`
}

// Calculate handles POST /retirement-plans/calculate.
// Accepts and produces JSON or XML depending on Content-Type and Accept.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var body CalculateRequest
	if err := decodeBody(r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	req := domain.RetirementRequest{
		CurrentAge:    body.CurrentAge,
		RetirementAge: body.RetirementAge,
		LifestyleType: domain.NormalizeKey(body.LifestyleType),
	}
	if body.InterestRate != nil && *body.InterestRate != "" {
		rate, err := money.Parse(body.InterestRate.String())
		if err != nil {
			h.writeError(w, r, domain.InvalidInput("Interest Rate", "must be a decimal number"))
			return
		}
		req.InterestRate = &rate
	}

	result, err := h.calc.Calculate(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeNegotiated(w, r, http.StatusOK, CalculateResponse{
		CurrentAge:     result.CurrentAge,
		RetirementAge:  result.RetirementAge,
		InterestRate:   json.Number(result.InterestRate.String()),
		LifestyleType:  result.LifestyleType,
		MonthlyDeposit: json.Number(result.MonthlyDeposit.StringFixed(money.CurrencyScale)),
		FutureValue:    json.Number(result.FutureValue.StringFixed(money.CurrencyScale)),
	})
}

// HistoryEntry is one stored calculation.
type HistoryEntry struct {
	ID             string      `json:"id"`
	CurrentAge     int         `json:"currentAge"`
	RetirementAge  int         `json:"retirementAge"`
	InterestRate   json.Number `json:"interestRate"`
	LifestyleType  string      `json:"lifestyleType"`
	MonthlyDeposit json.Number `json:"monthlyDeposit"`
	FutureValue    json.Number `json:"futureValue"`
	CreatedAt      string      `json:"createdAt"`
}

// History handles GET /retirement-plans/history?limit=N.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Status:  statusError,
			Message: "Calculation history is not available",
		})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeError(w, r, domain.InvalidInput("limit", "must be a positive integer"))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.repo.ListCalculations(r.Context(), limit)
	if err != nil {
		slog.Error("failed to list calculations", "error", err, "request_id", GetRequestID(r.Context()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status:  statusError,
			Message: "Failed to load calculation history",
			Code:    domain.CodeCalculationFailed,
		})
		return
	}

	entries := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, HistoryEntry{
			ID:             rec.ID,
			CurrentAge:     rec.CurrentAge,
			RetirementAge:  rec.RetirementAge,
			InterestRate:   json.Number(rec.InterestRate.String()),
			LifestyleType:  rec.LifestyleType,
			MonthlyDeposit: json.Number(rec.MonthlyDeposit.StringFixed(money.CurrencyScale)),
			FutureValue:    json.Number(rec.FutureValue.StringFixed(money.CurrencyScale)),
			CreatedAt:      rec.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"calculations": entries,
		"count":        len(entries),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	components := map[string]string{}

	check := func(name string, ping func() error) {
		if err := ping(); err != nil {
			slog.Warn("health check failed", "component", name, "error", err)
			components[name] = "down"
			status = "degraded"
			return
		}
		components[name] = "up"
	}

	ctx := r.Context()
	if h.repo != nil {
		check("repository", func() error { return h.repo.Ping(ctx) })
	}
	if h.cache != nil {
		check("cache", func() error { return h.cache.Ping(ctx) })
	}
	if h.bus != nil {
		check("eventBus", func() error { return h.bus.Ping(ctx) })
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     status,
		"version":    h.version,
		"components": components,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.ready.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready": "false",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RequireReady answers 503 until startup loading completes, so calculations never
// run against half-populated caches.
func (h *Handler) RequireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.ready.Load() {
			w.Header().Set("Retry-After", "1")
			writeNegotiated(w, r, http.StatusServiceUnavailable, ErrorResponse{
				Status:  statusError,
				Message: "Lifestyle data is still loading",
				Code:    domain.CodeCacheUnavailable,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NotFound replies to unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Status:  statusError,
		Message: "No route for " + r.Method + " " + r.URL.Path,
	})
}

// MethodNotAllowed replies to known routes requested with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{
		Status:  statusError,
		Message: "Method " + r.Method + " not allowed for " + r.URL.Path,
	})
}

// writeError maps a service error to its HTTP status and writes the error body.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := httpStatus(err)
	resp := ErrorResponse{
		Status:  statusError,
		Message: "Internal server error",
		Code:    domain.CodeOf(err),
	}

	var de *domain.Error
	if errors.As(err, &de) {
		resp.Message = de.Message
		resp.Field = de.Field
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"path", r.URL.Path,
			"code", resp.Code,
			"error", err,
			"request_id", GetRequestID(r.Context()),
		)
	} else {
		slog.Debug("request rejected", "path", r.URL.Path, "code", resp.Code, "error", err)
	}

	writeNegotiated(w, r, status, resp)
}

// httpStatus maps the outermost error kind to a status code.
func httpStatus(err error) int {
	if errors.Is(err, errUnsupportedMediaType) {
		return http.StatusUnsupportedMediaType
	}
	switch domain.CodeOf(err) {
	case domain.CodeInvalidInput:
		return http.StatusBadRequest
	case domain.CodeLifestyleNotFound:
		return http.StatusNotFound
	case domain.CodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// requestKey returns the lower-cased {key} path parameter.
func requestKey(r *http.Request) string {
	return strings.ToLower(pathParam(r, "key"))
}
