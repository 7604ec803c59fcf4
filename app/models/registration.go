package models

import "time"

// Payment collection methods for a registration.
const (
	PaymentMethodCash   = "cash"
	PaymentMethodOnline = "online"
)

// Registration payment states.
const (
	RegistrationUnpaid   = "unpaid"
	RegistrationPaid     = "paid"
	RegistrationRefunded = "refunded"
)

// Registration is one attendee's spot at an event, carrying the fee owed and
// how it is collected. Online registrations are settled by provider webhooks.
type Registration struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	PublicID      string     `gorm:"type:varchar(36);not null;uniqueIndex" json:"public_id"`
	EventID       uint       `gorm:"not null;index" json:"event_id"`
	Event         Event      `gorm:"foreignKey:EventID" json:"-"`
	AttendeeName  string     `gorm:"type:varchar(191);not null" json:"attendee_name"`
	AttendeeEmail string     `gorm:"type:varchar(191);not null" json:"attendee_email"`
	FeeCents      int64      `gorm:"not null;default:0" json:"fee_cents"`
	Method        string     `gorm:"type:varchar(10);not null;default:'online'" json:"method"`
	PaymentStatus string     `gorm:"type:varchar(10);not null;default:'unpaid';index" json:"payment_status"`
	PaidAt        *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
