package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/pkg/zip"
)

type createOrderRequest struct {
	UserID     string         `json:"user_id"`
	ServiceID  string         `json:"service_id"`
	Parameters map[string]any `json:"parameters"`
}

type orderResponse struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	ServiceID    string          `json:"service_id"`
	Status       string          `json:"status"`
	Step         string          `json:"step,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:           o.ID,
		UserID:       o.UserID,
		ServiceID:    o.ServiceID,
		Status:       string(o.Status),
		Step:         o.CurrentStep(),
		Result:       json.RawMessage(o.Result),
		ErrorMessage: o.ErrorMessage,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

// CreateOrder handles POST /v1/orders.
func (a *App) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.ServiceID == "" {
		a.jsonError(w, http.StatusBadRequest, "user_id and service_id are required")
		return
	}

	order, err := a.Engine.CreateOrder(r.Context(), req.UserID, req.ServiceID, req.Parameters)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidParameters) {
			a.jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Logger.Error().Err(err).Msg("api: create order failed")
		a.jsonError(w, http.StatusInternalServerError, "failed to create order")
		return
	}
	a.json(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /v1/orders/{id}.
func (a *App) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := a.Engine.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "order not found")
			return
		}
		a.Logger.Error().Err(err).Str("order_id", id).Msg("api: get order failed")
		a.jsonError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	a.json(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles POST /v1/orders/{id}/cancel.
func (a *App) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := a.Engine.CancelOrder(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			a.jsonError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, domain.ErrInvalidTransition):
			a.jsonError(w, http.StatusConflict, err.Error())
		default:
			a.Logger.Error().Err(err).Str("order_id", id).Msg("api: cancel order failed")
			a.jsonError(w, http.StatusInternalServerError, "failed to cancel order")
		}
		return
	}
	a.json(w, http.StatusOK, toOrderResponse(order))
}

// DownloadResult handles GET /v1/orders/{id}/download, returning the
// completed order's content as a zip archive.
func (a *App) DownloadResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := a.Engine.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.jsonError(w, http.StatusNotFound, "order not found")
			return
		}
		a.Logger.Error().Err(err).Str("order_id", id).Msg("api: download failed")
		a.jsonError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if order.Status != domain.OrderStatusCompleted {
		a.jsonError(w, http.StatusConflict, fmt.Sprintf("order is %s, not completed", order.Status))
		return
	}

	entries := []zip.Entry{{Name: "result.json", Data: order.Result}}
	var payload map[string]any
	if err := json.Unmarshal(order.Result, &payload); err == nil {
		if draft, ok := payload["draft"].(string); ok {
			entries = append(entries, zip.Entry{Name: "article.txt", Data: []byte(draft)})
		}
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.Logger.Error().Err(err).Str("order_id", id).Msg("api: archive failed")
		a.jsonError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "order-"+order.ID+".zip"))
	_, _ = w.Write(archive)
}
