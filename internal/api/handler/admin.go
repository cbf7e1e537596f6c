package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/nodewatch/internal/api/request"
	"github.com/edvin/nodewatch/internal/api/response"
	"github.com/edvin/nodewatch/internal/core"
)

// MetricsRefresher triggers an immediate metrics collection cycle.
type MetricsRefresher interface {
	RefreshAll(ctx context.Context) error
}

type Admin struct {
	registry  *core.RegistryService
	refresher MetricsRefresher
	pruneDays int
	now       func() time.Time
}

func NewAdmin(registry *core.RegistryService, refresher MetricsRefresher, pruneDays int) *Admin {
	return &Admin{
		registry:  registry,
		refresher: refresher,
		pruneDays: pruneDays,
		now:       time.Now,
	}
}

func (h *Admin) Rename(w http.ResponseWriter, r *http.Request) {
	var req request.RenameNode
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.registry.Rename(r.Context(), req.OldID, req.NewID)
	switch {
	case errors.Is(err, core.ErrConflict):
		response.WriteError(w, http.StatusConflict, "target node ID already exists")
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, "node not found")
	case err != nil:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (h *Admin) Delete(w http.ResponseWriter, r *http.Request) {
	nodeID, err := request.RequireID(chi.URLParam(r, "nodeID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.Delete(r.Context(), nodeID); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Prune removes nodes silent for longer than the cutoff. The body is
// optional; without one the configured default applies. A cutoff of zero
// prunes nothing.
func (h *Admin) Prune(w http.ResponseWriter, r *http.Request) {
	days := h.pruneDays
	if r.ContentLength > 0 {
		var req request.PruneNodes
		if err := request.Decode(r, &req); err != nil {
			response.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Days != nil {
			days = *req.Days
		}
	}

	removed, err := h.registry.Prune(r.Context(), h.now(), time.Duration(days)*24*time.Hour)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{"removed": removed, "days": days})
}

func (h *Admin) ToggleAlerts(w http.ResponseWriter, r *http.Request) {
	nodeID, err := request.RequireID(chi.URLParam(r, "nodeID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req request.AlertToggle
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.registry.SetAlertEnabled(r.Context(), nodeID, *req.Enabled)
	switch {
	case errors.Is(err, core.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, "node not found")
	case err != nil:
		response.WriteError(w, http.StatusInternalServerError, err.Error())
	default:
		response.WriteJSON(w, http.StatusOK, map[string]any{"node_id": nodeID, "enabled": *req.Enabled})
	}
}

// Refresh runs a full metrics collection cycle synchronously.
func (h *Admin) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.refresher.RefreshAll(r.Context()); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
