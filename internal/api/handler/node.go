package handler

import (
	"net/http"
	"time"

	"github.com/edvin/nodewatch/internal/api/response"
	"github.com/edvin/nodewatch/internal/core"
	"github.com/edvin/nodewatch/internal/model"
)

type Node struct {
	registry *core.RegistryService
	now      func() time.Time
}

func NewNode(registry *core.RegistryService) *Node {
	return &Node{registry: registry, now: time.Now}
}

type nodeListResponse struct {
	Nodes []model.NodeView `json:"nodes"`
	Total int              `json:"total"`
	Up    int              `json:"up"`
}

// List returns every node with liveness computed against the current clock.
func (h *Node) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.registry.List(r.Context(), h.now())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if views == nil {
		views = []model.NodeView{}
	}

	up := 0
	for _, v := range views {
		if v.ComputedStatus == model.StatusUp {
			up++
		}
	}
	response.WriteJSON(w, http.StatusOK, nodeListResponse{
		Nodes: views,
		Total: len(views),
		Up:    up,
	})
}
