package models

import (
	"time"

	"gorm.io/gorm"
)

// RelationshipResult is returned by every relationship operation: the
// actor's updated document and the resulting pair state.
type RelationshipResult struct {
	User     *User    `json:"user"`
	Relation Relation `json:"relation"`
	Message  string   `json:"message"`
}

// RepairRecord logs a two-document relationship operation whose second
// write never landed (PostgreSQL, via gorm). Compensated tells whether the
// first write was rolled back; uncompensated records need reconciliation.
type RepairRecord struct {
	gorm.Model
	Operation   string     `json:"operation" gorm:"size:40;index"`
	FirstUser   string     `json:"first_user" gorm:"size:24;index"`
	SecondUser  string     `json:"second_user" gorm:"size:24;index"`
	Attempts    int        `json:"attempts"`
	Compensated bool       `json:"compensated" gorm:"index"`
	LastError   string     `json:"last_error"`
	ResolvedAt  *time.Time `json:"resolved_at"`
}
