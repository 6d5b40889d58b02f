// Package httpapi provides the REST HTTP adapter for the server surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evanschultz/reeldesk/internal/adapters/server/common"
	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// defaultHeartbeat spaces keep-alive comments on idle event streams.
const defaultHeartbeat = 15 * time.Second

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	service   common.CollectionService
	feed      common.InvalidationFeed
	heartbeat time.Duration
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Hint    string         `json:"hint,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Option customizes a Handler.
type Option func(*Handler)

// WithHeartbeat sets the idle keep-alive interval of event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHandler constructs one HTTP API adapter. feed may be nil, which disables `/events`.
func NewHandler(service common.CollectionService, feed common.InvalidationFeed, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		feed:      feed,
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: "collection APIs are not available",
		})
		return
	}
	path := normalizePath(r.URL.Path)
	switch path {
	case "collections":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleListCollections(w, r)
		return
	case "events":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleEvents(w, r)
		return
	case "public/media":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePublicMedia(w, r)
		return
	case "public/experience":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handlePublicExperience(w, r)
		return
	}

	route, ok := resolveCollectionRoute(path)
	if !ok {
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
		return
	}
	switch route.action {
	case "items":
		switch r.Method {
		case http.MethodGet:
			h.handleListItems(w, r, route)
		case http.MethodPost:
			h.handleCreateItem(w, r, route)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case "item":
		switch r.Method {
		case http.MethodGet:
			h.handleGetItem(w, r, route)
		case http.MethodPatch:
			h.handleUpdateItem(w, r, route)
		case http.MethodDelete:
			h.handleDeleteItem(w, r, route)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPatch, http.MethodDelete)
		}
	case "item_order":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleUpdateOrder(w, r, route)
	case "item_status":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleUpdateStatus(w, r, route)
	case "order":
		if r.Method != http.MethodPut {
			writeMethodNotAllowed(w, http.MethodPut)
			return
		}
		h.handleApplyOrder(w, r, route)
	case "invalidate":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleInvalidate(w, r, route)
	case "board":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBoard(w, r, route)
	}
}

// handleListCollections serves GET `/collections`.
func (h *Handler) handleListCollections(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.ListCollections(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListItems serves GET `/collections/{c}/items`.
func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	items, err := h.service.ListItems(r.Context(), common.ListItemsRequest{
		Collection: route.collection,
		Kind:       strings.TrimSpace(r.URL.Query().Get("kind")),
		Visibility: strings.TrimSpace(r.URL.Query().Get("visibility")),
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": route.collection,
		"items":      items,
	})
}

// handleCreateItem serves POST `/collections/{c}/items`.
func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	var req common.CreateItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if req.Collection != "" && !strings.EqualFold(strings.TrimSpace(req.Collection), route.collection) {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: "body collection does not match the path",
			Context: map[string]any{"path": route.collection, "body": req.Collection},
		})
		return
	}
	req.Collection = route.collection
	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// handleGetItem serves GET `/collections/{c}/items/{id}`.
func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	item, err := h.service.GetItem(r.Context(), common.ItemRef{Collection: route.collection, ID: route.itemID})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleUpdateItem serves PATCH `/collections/{c}/items/{id}`.
func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	var req common.UpdateItemRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Collection = route.collection
	req.ID = route.itemID
	item, err := h.service.UpdateItem(r.Context(), req)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDeleteItem serves DELETE `/collections/{c}/items/{id}`.
func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	if err := h.service.DeleteItem(r.Context(), common.ItemRef{Collection: route.collection, ID: route.itemID}); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateOrder serves PUT `/collections/{c}/items/{id}/order`.
func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	var req common.UpdateOrderRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Collection = route.collection
	req.ID = route.itemID
	if err := h.service.UpdateOrder(r.Context(), req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection":    route.collection,
		"id":            route.itemID,
		"display_order": req.DisplayOrder,
	})
}

// handleUpdateStatus serves PUT `/collections/{c}/items/{id}/status`.
func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	var req common.UpdateStatusRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	req.Collection = route.collection
	req.ID = route.itemID
	if err := h.service.UpdateStatus(r.Context(), req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": route.collection,
		"id":         route.itemID,
		"status":     strings.ToLower(strings.TrimSpace(req.Status)),
	})
}

// handleApplyOrder serves PUT `/collections/{c}/order`.
func (h *Handler) handleApplyOrder(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	var payload struct {
		Kind    string            `json:"kind,omitempty"`
		IDs     []string          `json:"ids,omitempty"`
		Updates []app.OrderUpdate `json:"updates,omitempty"`
	}
	if err := decodeJSONBody(r.Context(), w, r, &payload); err != nil {
		writeErrorFrom(w, err)
		return
	}
	kind := payload.Kind
	if q := strings.TrimSpace(r.URL.Query().Get("kind")); q != "" {
		kind = q
	}
	result, err := h.service.ApplyOrder(r.Context(), common.ReorderRequest{
		Collection: route.collection,
		Kind:       kind,
		IDs:        payload.IDs,
		Updates:    payload.Updates,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleInvalidate serves POST `/collections/{c}/invalidate`.
func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	if err := decodeOptionalJSONBody(r.Context(), w, r, &struct{}{}); err != nil {
		writeErrorFrom(w, err)
		return
	}
	if err := h.service.Invalidate(r.Context(), route.collection); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"collection": route.collection,
	})
}

// handleBoard serves GET `/collections/{c}/board`.
func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request, route collectionRoute) {
	board, err := h.service.Board(r.Context(), route.collection)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// handlePublicMedia serves GET `/public/media?type=`.
func (h *Handler) handlePublicMedia(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.PublicMedia(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handlePublicExperience serves GET `/public/experience?category=`.
func (h *Handler) handlePublicExperience(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.PublicExperience(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
	})
}

// handleEvents serves GET `/events` as a server-sent event stream of invalidations.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: "event stream is not available",
		})
		return
	}
	var collection domain.Collection
	if raw := strings.TrimSpace(r.URL.Query().Get("collection")); raw != "" {
		parsed, err := domain.ParseCollection(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: fmt.Sprintf("unknown collection %q", raw),
			})
			return
		}
		collection = parsed
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "stream unsupported",
		})
		return
	}

	events, cancel := h.feed.Subscribe(collection)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, ": connected\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case inv, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(inv)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// collectionRoute is one parsed `/collections/{c}/...` path.
type collectionRoute struct {
	collection string
	itemID     string
	action     string
}

// resolveCollectionRoute parses `collections/{c}/{action}` and `collections/{c}/items/{id}[/order|/status]`.
func resolveCollectionRoute(path string) (collectionRoute, bool) {
	parts := strings.Split(path, "/")
	if len(parts) < 3 || parts[0] != "collections" || strings.TrimSpace(parts[1]) == "" {
		return collectionRoute{}, false
	}
	route := collectionRoute{collection: parts[1]}
	switch {
	case len(parts) == 3:
		switch parts[2] {
		case "items", "order", "invalidate", "board":
			route.action = parts[2]
			return route, true
		}
	case parts[2] == "items" && strings.TrimSpace(parts[3]) != "":
		route.itemID = parts[3]
		switch {
		case len(parts) == 4:
			route.action = "item"
			return route, true
		case len(parts) == 5 && parts[4] == "order":
			route.action = "item_order"
			return route, true
		case len(parts) == 5 && parts[4] == "status":
			route.action = "item_status"
			return route, true
		}
	}
	return collectionRoute{}, false
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps adapter errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	var partial *app.PartialBatchFailure
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "unknown error",
		})
	case errors.Is(err, common.ErrPartialBatch) && errors.As(err, &partial):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "partial_batch_failure",
			Message: err.Error(),
			Hint:    "Some positions were saved and some were not. Refetch and commit the order again.",
			Context: map[string]any{
				"applied": partial.Applied,
				"failed":  partial.Failed,
			},
		})
	case errors.Is(err, common.ErrPartialBatch):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "partial_batch_failure",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrConflict):
		writeJSONError(w, http.StatusConflict, APIError{
			Code:    "conflict",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrPersistence):
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "persistence_failed",
			Message: err.Error(),
		})
	case errors.Is(err, common.ErrUnavailable):
		writeJSONError(w, http.StatusNotImplemented, APIError{
			Code:    "not_implemented",
			Message: err.Error(),
		})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: err.Error(),
		})
	}
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", common.ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}

// decodeOptionalJSONBody decodes one optional JSON body and ignores empty payloads.
func decodeOptionalJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(out)
	if err == nil {
		select {
		case <-ctx.Done():
			return fmt.Errorf("request canceled: %w", ctx.Err())
		default:
			return nil
		}
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", errors.Join(common.ErrInvalidRequest, err))
}
