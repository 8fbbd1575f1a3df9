package domain

import "time"

// Account owns sites. Deactivation cascades to its sites through the
// AccountDeactivated event, not by direct call.
type Account struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	Name             string  `gorm:"type:varchar(255);not null"`
	Active           bool    `gorm:"not null;default:true"`
	MaxActiveBatches int     `gorm:"not null;default:5"`
	WebhookURL       *string `gorm:"type:varchar(1024)"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Site belongs to exactly one account and is identified externally by its
// domain name and API key.
type Site struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	AccountID string `gorm:"type:uuid;not null"`
	Domain    string `gorm:"type:varchar(255);not null"`
	APIKey    string `gorm:"type:varchar(64);not null"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
