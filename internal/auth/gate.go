package auth

import "docvault/internal/model"

// Action enumerates the operations the gate can authorize on a document.
type Action string

const (
	ActionView     Action = "view"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionRestore  Action = "restore"
	ActionPurge    Action = "purge"
	ActionDownload Action = "download"
)

// Gate decides whether an actor may perform an action on a document.
// The administrative bypass is evaluated once, up front; every other rule is
// ownership-based. Purge is admin-only unless OwnerCanPurge is set; the
// trashed-state requirement for purge is a separate business-policy check in
// the service layer.
type Gate struct {
	// OwnerCanPurge extends the purge capability to document owners.
	OwnerCanPurge bool
}

// NewGate constructs a Gate with the given purge policy.
func NewGate(ownerCanPurge bool) *Gate {
	return &Gate{OwnerCanPurge: ownerCanPurge}
}

// Can reports whether actor may perform action on doc.
func (g *Gate) Can(actor model.Actor, action Action, doc *model.Document) bool {
	if doc == nil {
		return false
	}
	if action == ActionPurge {
		if actor.Admin {
			return true
		}
		return g.OwnerCanPurge && doc.OwnerID == actor.ID
	}
	if actor.Admin {
		return true
	}
	return doc.OwnerID == actor.ID
}
