package model

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
)

// OnboardingStatus represents a companion's progress through provider onboarding
type OnboardingStatus string

const (
	OnboardingStatusNotStarted     OnboardingStatus = "not_started"
	OnboardingStatusInProgress     OnboardingStatus = "in_progress"
	OnboardingStatusActionRequired OnboardingStatus = "action_required"
	OnboardingStatusComplete       OnboardingStatus = "complete"
)

// Scan implements sql.Scanner interface
func (s *OnboardingStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = OnboardingStatus(v)
	case []byte:
		*s = OnboardingStatus(v)
	default:
		*s = OnboardingStatusNotStarted
	}
	return nil
}

// Value implements driver.Valuer interface
func (s OnboardingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// CompanionPayoutAccount mirrors the payment provider's payout account for a
// companion. The provider is the source of truth for the capability flags;
// rows are superseded on re-enrollment, never deleted.
type CompanionPayoutAccount struct {
	ID                 int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanionID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"companion_id"`
	ProviderAccountRef string           `gorm:"unique;not null;size:100" json:"provider_account_ref"`
	ChargesEnabled     bool             `gorm:"not null;default:false" json:"charges_enabled"`
	PayoutsEnabled     bool             `gorm:"not null;default:false" json:"payouts_enabled"`
	OnboardingStatus   OnboardingStatus `gorm:"type:onboarding_status;not null;default:'not_started'" json:"onboarding_status"`
	Superseded         bool             `gorm:"not null;default:false" json:"superseded"`
	CreatedAt          time.Time        `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (CompanionPayoutAccount) TableName() string {
	return "companion_payout_accounts"
}
