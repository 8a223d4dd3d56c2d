package domain

import "time"

// Idempotency records the outcome of a completed POST so a retried request
// carrying the same Idempotency-Key replays it instead of writing again.
// Rows are keyed by (scope, key); scope names the operation ("submit",
// "upload").
//
// ResourceID holds the created complaint id for submissions; Count holds
// the number of rows written for uploads.
type Idempotency struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	Scope      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_idem_scope_key,priority:1"`
	Key        string    `gorm:"column:idem_key;type:varchar(200);not null;uniqueIndex:ux_idem_scope_key,priority:2"`
	ResourceID int64     `gorm:"not null;default:0"`
	Count      int       `gorm:"not null;default:0"`
	Status     int       `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
