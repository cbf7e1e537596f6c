package request

type RenameNode struct {
	OldID string `json:"old_id" validate:"required"`
	NewID string `json:"new_id" validate:"required"`
}

// PruneNodes optionally overrides the configured cutoff. A nil Days falls
// back to the process default.
type PruneNodes struct {
	Days *int `json:"days" validate:"omitempty,min=0"`
}

// AlertToggle requires an explicit boolean so a malformed body cannot
// silently disable notifications.
type AlertToggle struct {
	Enabled *bool `json:"enabled" validate:"required"`
}
