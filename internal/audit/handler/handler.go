// Package handler exposes the audit ledger over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ecoaudit/internal/audit"
	"ecoaudit/pkg/platform/httputil"
	"ecoaudit/pkg/requestcontext"
)

// Service defines the audit operations the handler needs.
type Service interface {
	Record(ctx context.Context, req audit.RecordRequest) (*audit.Event, error)
	Query(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, error)
}

// Handler wires audit endpoints to the audit service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an audit handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts audit endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/audit-events", h.HandleRecord)
	r.Get("/audit-events", h.HandleList)
	r.Get("/audit-metadata", h.HandleMetadata)
}

// HandleRecord handles POST /audit-events requests.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[RecordEventRequest](w, r, h.logger)
	if !ok {
		return
	}

	event, err := h.service.Record(ctx, req.ToDomain())
	if err != nil {
		h.logger.ErrorContext(ctx, "audit record failed",
			"request_id", requestcontext.RequestID(ctx),
			"action", req.Action,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, FromEvent(*event))
}

// HandleList handles GET /audit-events requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	filter, page, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	events, err := h.service.Query(ctx, filter, page)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := ListResponse{Events: make([]EventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, FromEvent(e))
	}
	// A page that might not be the last one carries a cursor; clients walk
	// until they receive an empty page.
	if n := len(events); n > 0 && (page.Limit == 0 || n == page.Limit) {
		last := events[len(events)-1]
		token := audit.Cursor{Timestamp: last.Timestamp, ID: last.ID}.Encode()
		resp.NextCursor = &token
	}

	h.logger.InfoContext(ctx, "audit events listed",
		"request_id", requestcontext.RequestID(ctx),
		"count", len(resp.Events),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleMetadata handles GET /audit-metadata requests.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	actions := make(map[string]string)
	for code, label := range audit.ActionLabels() {
		actions[string(code)] = label
	}
	results := make(map[string]string)
	for code, label := range audit.ResultLabels() {
		results[string(code)] = label
	}

	httputil.WriteJSON(w, http.StatusOK, MetadataResponse{
		Actions: actions,
		Results: results,
	})
}
