package models

import "time"

// Event is an organized gathering attendees register for.
type Event struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrganizerID uint       `gorm:"not null;index" json:"organizer_id"`
	Organizer   Organizer  `gorm:"foreignKey:OrganizerID" json:"-"`
	Title       string     `gorm:"type:varchar(191);not null" json:"title"`
	FeeCents    int64      `gorm:"not null;default:0" json:"fee_cents"`
	Currency    string     `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	StartsAt    *time.Time `gorm:"type:timestamp;default:null" json:"starts_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
