package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vainnor/active-flights/metrics"
	"github.com/vainnor/active-flights/registry"
	"github.com/vainnor/active-flights/types"
)

// Registry is the flight store the handlers operate on.
type Registry interface {
	List() []types.FlightRecord
	Add(fields types.FlightRecord) error
	UpdateByUsername(fields types.FlightRecord) error
	RemoveByUsername(fields types.FlightRecord) (int, error)
}

type Handlers struct {
	Registry     Registry
	Logger       *zap.Logger
	MaxBodyBytes int64
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg})
}

// Fetch lists every active flight.
func (h *Handlers) Fetch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.List())
	metrics.RecordOperation("list", "ok")
}

// New adds a flight from a POST body or GET query.
func (h *Handlers) New(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.fields(w, r, http.MethodPost, "add")
	if !ok {
		return
	}

	err := h.Registry.Add(fields)
	var missing *registry.MissingFieldsError
	switch {
	case err == nil:
		metrics.RecordOperation("add", "ok")
		writeJSON(w, http.StatusCreated, MessageResponse{Message: msgFlightAdded})
	case errors.As(err, &missing):
		metrics.RecordOperation("add", "missing_fields")
		h.logger(r).Debug("missing keys", zap.Strings("missing_keys", missing.Keys))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: errMissingData, MissingKeys: missing.Keys})
	default:
		h.internalError(w, r, "add", err)
	}
}

// Update merges fields into the first flight with the given username.
func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.fields(w, r, http.MethodPut, "update")
	if !ok {
		return
	}

	err := h.Registry.UpdateByUsername(fields)
	switch {
	case err == nil:
		metrics.RecordOperation("update", "ok")
		writeJSON(w, http.StatusOK, MessageResponse{Message: msgFlightUpdated})
	case errors.Is(err, registry.ErrMissingKey):
		metrics.RecordOperation("update", "missing_key")
		writeError(w, http.StatusBadRequest, errMissingUsername)
	case errors.Is(err, registry.ErrNotFound):
		metrics.RecordOperation("update", "not_found")
		writeError(w, http.StatusNotFound, errFlightNotFound)
	default:
		h.internalError(w, r, "update", err)
	}
}

// Remove drops every flight with the given username.
func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.fields(w, r, http.MethodDelete, "remove")
	if !ok {
		return
	}

	removed, err := h.Registry.RemoveByUsername(fields)
	switch {
	case err == nil:
		metrics.RecordOperation("remove", "ok")
		h.logger(r).Debug("flights removed", zap.Int("removed", removed))
		writeJSON(w, http.StatusOK, MessageResponse{Message: msgFlightRemoved})
	case errors.Is(err, registry.ErrMissingKey):
		metrics.RecordOperation("remove", "missing_key")
		writeError(w, http.StatusBadRequest, errMissingUsername)
	default:
		h.internalError(w, r, "remove", err)
	}
}

// GetCollectorStats serves the collector's running statistics.
func GetCollectorStats(collector Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, collector.GetStats())
	}
}

func (h *Handlers) fields(w http.ResponseWriter, r *http.Request, writeMethod, op string) (types.FlightRecord, bool) {
	fields, err := parseFields(w, r, writeMethod, h.MaxBodyBytes)
	if err != nil {
		metrics.RecordOperation(op, "invalid_body")
		h.logger(r).Debug("invalid request body", zap.Error(err))
		writeError(w, http.StatusBadRequest, errInvalidJSON)
		return nil, false
	}
	h.logger(r).Debug("received data", zap.Any("data", fields))
	return fields, true
}

func (h *Handlers) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	metrics.RecordOperation(op, "error")
	h.logger(r).Error("registry operation failed", zap.String("op", op), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func (h *Handlers) logger(r *http.Request) *zap.Logger {
	return h.Logger.With(zap.String("request_id", RequestIDFrom(r.Context())))
}
