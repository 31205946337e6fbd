package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"fileplacer/internal/audit"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
	"fileplacer/internal/util/jsonutil"
)

const maxRequestBody = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	File  string `json:"file,omitempty"`
}

func (h *Handler) HandleScan(w http.ResponseWriter, r *http.Request) {
	// A JSON body forces a CORS preflight, so foreign pages cannot submit
	// scans as simple form posts.
	if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorBody{
			Error: "content type must be application/json",
			Code:  "unsupported_media_type",
		})
		return
	}
	var req audit.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, fmt.Errorf("%w: decode request: %v", placement.ErrInvalidInput, err))
		return
	}
	stored, err := h.scanner.Scan(r.Context(), req, nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.writeError(w, reportstore.ErrNotFound)
		return
	}
	stored, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids := []string{}
	if h.store != nil {
		got, err := h.store.List(r.Context())
		if err != nil {
			h.writeError(w, err)
			return
		}
		if got != nil {
			ids = got
		}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, placement.ErrInvalidInput), errors.Is(err, placement.ErrNoSource):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, reportstore.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, placement.ErrMissingCredential):
		return http.StatusInternalServerError, "misconfigured"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "canceled"
	case errors.Is(err, placement.ErrService):
		return http.StatusBadGateway, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func errorPayload(err error) (int, errorBody) {
	status, code := statusFor(err)
	body := errorBody{Error: err.Error(), Code: code}
	var aerr *placement.AdjudicationError
	if errors.As(err, &aerr) {
		body.File = aerr.Path
	}
	return status, body
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, body := errorPayload(err)
	if status >= 500 {
		h.log.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		h.log.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonutil.WriteIndent(w, v)
}
