package models

import "time"

// Organizer is the tenant that hosts events and receives payouts. Events from
// the payment provider may be scoped to the organizer's connected account.
type Organizer struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(191);not null" json:"name"`
	Email              string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"email"`
	ConnectedAccountID string    `gorm:"type:varchar(191);not null;default:'';uniqueIndex" json:"connected_account_id"`
	PayoutsEnabled     bool      `gorm:"default:false" json:"payouts_enabled"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
