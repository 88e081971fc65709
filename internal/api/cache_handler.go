package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

// CacheStatus handles GET /cache/status/{key}. Connectivity problems are
// reported in cacheStatus, never as an HTTP error.
func (h *Handler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	st := h.maint.Status(r.Context(), requestKey(r))
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      statusSuccess,
		"cacheStatus": st.String(),
	})
}

// RefreshCache handles PUT /cache/refresh/{key}.
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)

	value, err := h.maint.Refresh(r.Context(), key)
	if errors.Is(err, domain.ErrLifestyleNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  statusError,
			"message": "No data available to refresh for key: " + key,
			"code":    domain.CodeLifestyleNotFound,
		})
		return
	}
	if err != nil {
		h.writeCacheError(w, r, "Error refreshing cache", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "Cache refreshed successfully",
		"key":     key,
		"value":   value,
	})
}

// RefreshAllCache handles POST /cache/refreshAll.
func (h *Handler) RefreshAllCache(w http.ResponseWriter, r *http.Request) {
	summary, err := h.maint.RefreshAll(r.Context())
	if err != nil {
		h.writeCacheError(w, r, "Error refreshing cache", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         statusSuccess,
		"message":        "All cache entries have been refreshed.",
		"refreshedCache": summary.Message,
		"deleted":        summary.Deleted,
		"loaded":         summary.Loaded,
	})
}

// GetCache handles GET /cache/get/{key}.
func (h *Handler) GetCache(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)

	value, found, err := h.maint.Fetch(r.Context(), key)
	if err != nil {
		h.writeCacheError(w, r, "Error reading cache", err)
		return
	}
	if !found {
		slog.Warn("cache miss", "key", key)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  statusError,
			"message": "No cache entry for key: " + key,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"key":   key,
		"value": value,
	})
}

// GetAllCache handles GET /cache/all.
func (h *Handler) GetAllCache(w http.ResponseWriter, r *http.Request) {
	entries, err := h.maint.FetchAll(r.Context())
	if err != nil {
		h.writeCacheError(w, r, "Error reading cache", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// SetCache handles POST /cache/set?key=&value=. Form bodies are accepted as well.
func (h *Handler) SetCache(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.FormValue("key"))
	value := r.FormValue("value")

	if key == "" {
		slog.Warn("cache set rejected: key is missing or blank")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  statusError,
			"message": "Key must not be null or empty",
			"code":    domain.CodeInvalidInput,
		})
		return
	}
	if strings.TrimSpace(value) == "" {
		slog.Warn("cache set rejected: value is missing or blank", "key", key)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":  statusError,
			"message": "Value must not be null or empty",
			"code":    domain.CodeInvalidInput,
		})
		return
	}

	key = strings.ToLower(key)
	if err := h.maint.Update(r.Context(), key, value); err != nil {
		h.writeCacheError(w, r, "Error setting cache", err)
		return
	}

	slog.Info("cache updated", "key", key)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "Cache set successfully",
		"key":     key,
		"value":   value,
	})
}

// DeleteCache handles DELETE /cache/delete/{key}.
func (h *Handler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)

	if err := h.maint.Delete(r.Context(), key); err != nil {
		h.writeCacheError(w, r, "Error deleting cache", err)
		return
	}

	slog.Info("cache entry deleted", "key", key)
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  statusSuccess,
		"message": "Cache for '" + pathParam(r, "key") + "' deleted successfully",
	})
}

// writeCacheError reports a failed maintenance operation. The client sees action
// and the domain message; the underlying cause is only logged.
func (h *Handler) writeCacheError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := httpStatus(err)
	slog.Error(strings.ToLower(action),
		"path", r.URL.Path,
		"error", err,
		"request_id", GetRequestID(r.Context()),
	)

	message := action
	var de *domain.Error
	if errors.As(err, &de) {
		message += ": " + de.Message
	}
	writeJSON(w, status, map[string]string{
		"status":  statusError,
		"message": message,
		"code":    domain.CodeOf(err),
	})
}
