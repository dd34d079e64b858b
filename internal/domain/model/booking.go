package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAssigned  BookingStatus = "assigned"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// Scan implements sql.Scanner interface
func (s *BookingStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = BookingStatus(v)
	case []byte:
		*s = BookingStatus(v)
	default:
		*s = BookingStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s BookingStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Terminal reports whether no further status transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusRefunded
}

// PaymentStatus represents the payment status of a booking
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Scan implements sql.Scanner interface
func (s *PaymentStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = PaymentStatus(v)
	case []byte:
		*s = PaymentStatus(v)
	default:
		*s = PaymentStatusPending
	}
	return nil
}

// Value implements driver.Valuer interface
func (s PaymentStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Booking represents a traveler's assistance request and its payment state.
// Amounts are integer minor units (cents); never floats.
type Booking struct {
	ID                 uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TravelerID         uuid.UUID     `gorm:"type:uuid;not null;index" json:"traveler_id"`
	CompanionID        *uuid.UUID    `gorm:"type:uuid;index" json:"companion_id,omitempty"`
	Status             BookingStatus `gorm:"type:booking_status;not null;default:'pending';index" json:"status"`
	PaymentStatus      PaymentStatus `gorm:"type:booking_payment_status;not null;default:'pending'" json:"payment_status"`
	TotalAmount        int64         `gorm:"not null" json:"total_amount"`
	Currency           string        `gorm:"size:3;not null" json:"currency"`
	PaymentProvider    *string       `gorm:"size:20" json:"payment_provider,omitempty"`
	ProviderOrderRef   *string       `gorm:"size:100;index" json:"provider_order_ref,omitempty"`
	ProviderCaptureRef *string       `gorm:"size:100;index" json:"provider_capture_ref,omitempty"`
	PlatformFeeAmount  *int64        `json:"platform_fee_amount,omitempty"`
	PayoutDestination  *string       `gorm:"column:payout_destination_ref;size:100" json:"payout_destination_ref,omitempty"`
	CancellationReason *string       `json:"cancellation_reason,omitempty"`
	RefundReason       *string       `json:"refund_reason,omitempty"`
	CreatedAt          time.Time     `gorm:"default:now()" json:"created_at"`
	UpdatedAt          time.Time     `gorm:"default:now()" json:"updated_at"`
	CancelledAt        *time.Time    `json:"cancelled_at,omitempty"`
	RefundedAt         *time.Time    `json:"refunded_at,omitempty"`
}

// TableName specifies the table name for GORM
func (Booking) TableName() string {
	return "bookings"
}

// CheckInvariants verifies the cross-field consistency rules that must hold
// after every transition.
func (b *Booking) CheckInvariants() error {
	if b.Status == BookingStatusRefunded && b.PaymentStatus != PaymentStatusRefunded {
		return fmt.Errorf("booking %s: status refunded but payment status %s", b.ID, b.PaymentStatus)
	}
	if b.Status == BookingStatusConfirmed && b.PaymentStatus != PaymentStatusPaid {
		return fmt.Errorf("booking %s: status confirmed but payment status %s", b.ID, b.PaymentStatus)
	}
	if b.Status == BookingStatusRefunded && b.RefundedAt == nil {
		return fmt.Errorf("booking %s: status refunded but refunded_at not set", b.ID)
	}
	return nil
}
