package models

import "time"

// Term is a category or a tag. Name is stored trimmed and lowercased.
type Term struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}
