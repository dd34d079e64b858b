package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records manual admin interventions, in particular status overrides
// that bypass the booking transition table.
type AuditLog struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index" json:"actor_id,omitempty"`
	Action    string     `gorm:"not null;size:100" json:"action"`
	BookingID *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	OldValues JSONB      `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues JSONB      `gorm:"type:jsonb" json:"new_values,omitempty"`
	Reason    *string    `json:"reason,omitempty"`
	CreatedAt time.Time  `gorm:"default:now();index" json:"created_at"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_log"
}
