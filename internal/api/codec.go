package api

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Pris83/retirement-calculator/internal/domain"
)

const (
	mimeJSON = "application/json"
	mimeXML  = "application/xml"
)

var errUnsupportedMediaType = errors.New("unsupported media type")

// decodeBody reads a JSON or XML request body into v according to Content-Type.
// A missing Content-Type is treated as JSON.
func decodeBody(r *http.Request, v interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)

	var err error
	switch mediaType(r.Header.Get("Content-Type")) {
	case "", mimeJSON:
		err = json.NewDecoder(body).Decode(v)
	case mimeXML, "text/xml":
		err = xml.NewDecoder(body).Decode(v)
	default:
		return fmt.Errorf("%w: %w", errUnsupportedMediaType,
			domain.InvalidInput("Content-Type", "expected "+mimeJSON+" or "+mimeXML))
	}
	if err != nil {
		return domain.InvalidInput("body", "malformed request body")
	}
	return nil
}

// wantsXML reports whether the first JSON or XML type listed in Accept is XML.
func wantsXML(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		switch mediaType(part) {
		case mimeJSON:
			return false
		case mimeXML, "text/xml":
			return true
		}
	}
	return false
}

func mediaType(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

// writeNegotiated writes data as XML when the client asks for it and JSON otherwise.
func writeNegotiated(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if wantsXML(r) {
		writeXML(w, status, data)
		return
	}
	writeJSON(w, status, data)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", mimeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeXML(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", mimeXML)
	w.WriteHeader(status)
	io.WriteString(w, xml.Header)
	if err := xml.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func pathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
