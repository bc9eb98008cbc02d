package models

import "time"

// Task is a user-owned to-do item. Owner scoping is enforced at the storage
// layer: every lookup filters by owner id.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	OwnerID     string    `json:"owner"`
	CreatedAt   time.Time `json:"created_at"`
}
