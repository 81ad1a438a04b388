package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Watches []Watch `gorm:"foreignKey:SubscriptionEndpoint;constraint:OnDelete:CASCADE"`
}

// Watch links a subscription to one entity it wants presence notifications
// for. Kind is "players" or "worlds"; EntityID is the entity's name with
// decorative markup already stripped.
type Watch struct {
	SubscriptionEndpoint string `gorm:"primaryKey;size:512" json:"-"`
	Kind                 string `gorm:"primaryKey;size:16" json:"kind"`
	EntityID             string `gorm:"primaryKey;size:256;column:entity_id" json:"entityId"`
}
