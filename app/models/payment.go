package models

import "time"

// Provider payment states mirrored locally.
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment records a provider-side payment attempt against a registration.
// ProviderPaymentID is unique so webhook replays cannot double-book.
type Payment struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	RegistrationID    uint      `gorm:"not null;index" json:"registration_id"`
	ProviderPaymentID string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_payment_id"`
	AmountCents       int64     `gorm:"not null;default:0" json:"amount_cents"`
	Currency          string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	Status            string    `gorm:"type:varchar(20);not null;index" json:"status"`
	FailureMessage    string    `gorm:"type:text" json:"failure_message"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
