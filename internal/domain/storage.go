package domain

import "time"

// StoredItem is one key/value entry of the durable client storage that backs
// the credential store (the BFF counterpart of browser localStorage).
type StoredItem struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the database table name for StoredItem.
func (StoredItem) TableName() string { return "client_storage" }

// Idempotency records the response of a completed message append keyed by
// (chat_id, key) so that retried requests replay the original result instead
// of appending a duplicate message.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	ChatID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_chat_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_chat_key,priority:2"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	Body      string    `gorm:"type:TEXT NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
