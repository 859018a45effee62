package models

import "time"

// TableStatus reports the state of a table created at startup
type TableStatus struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"` // CREATING, ACTIVE, EXISTS, FAILED
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`
}
