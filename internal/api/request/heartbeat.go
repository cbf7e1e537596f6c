package request

import (
	"encoding/json"
	"strings"
)

// PeerIDList accepts either a JSON string array or a single comma-separated
// string. Older agents send the latter.
type PeerIDList []string

func (l *PeerIDList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}

	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = nil
	for _, part := range strings.Split(one, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

// Heartbeat is one node check-in. Status is optional; an absent status means
// the node considers itself UP.
type Heartbeat struct {
	NodeID           string     `json:"node_id" validate:"required"`
	IP               string     `json:"ip"`
	Meta             *string    `json:"meta"`
	Status           *string    `json:"status"`
	PeerIDs          PeerIDList `json:"peer_ids"`
	ExternalAccount  *string    `json:"external_account"`
	OffchainIdentity *string    `json:"offchain_identity"`
}
