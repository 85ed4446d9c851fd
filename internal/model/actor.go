package model

// Actor is the authenticated principal performing an operation.
// Admin is the administrative bypass capability: it satisfies every
// authorization check regardless of ownership.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
}
