package handler

import (
	"net/http"
	"time"

	"github.com/edvin/nodewatch/internal/api/request"
	"github.com/edvin/nodewatch/internal/api/response"
	"github.com/edvin/nodewatch/internal/core"
	"github.com/edvin/nodewatch/internal/model"
)

type Heartbeat struct {
	registry *core.RegistryService
	now      func() time.Time
}

func NewHeartbeat(registry *core.RegistryService) *Heartbeat {
	return &Heartbeat{registry: registry, now: time.Now}
}

// Ingest records one node check-in. A missing status field means UP; an
// unrecognized one is coerced to DOWN before it is stored.
func (h *Heartbeat) Ingest(w http.ResponseWriter, r *http.Request) {
	var req request.Heartbeat
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := model.StatusUp
	if req.Status != nil {
		status = model.NormalizeStatus(*req.Status)
	}

	hb := model.Heartbeat{
		NodeID:           req.NodeID,
		IP:               req.IP,
		Meta:             req.Meta,
		ReportedStatus:   status,
		PeerIDs:          []string(req.PeerIDs),
		ExternalAccount:  req.ExternalAccount,
		OffchainIdentity: req.OffchainIdentity,
		SeenAt:           h.now().UTC(),
	}
	if err := h.registry.Upsert(r.Context(), hb); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
