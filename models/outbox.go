package models

import (
	"encoding/json"
	"time"

	"github.com/mmdatafocus/marketplace_backend/config"
	"gorm.io/gorm"
)

// NotificationOutbox is the transactional outbox behind customer emails.
// Rows are written inside the mutating transaction; the dispatcher publishes
// them to Pub/Sub after commit.
type NotificationOutbox struct {
	ID            int       `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	Template      string    `gorm:"size:50;not null" json:"template"`
	OrderId       int       `gorm:"index" json:"order_id"`
	StoreId       int       `gorm:"index" json:"store_id"`
	RecipientMail string    `gorm:"size:255" json:"recipient_mail"`
	Payload       []byte    `gorm:"type:blob" json:"payload"`
	// publish metadata (publish happens after commit via dispatcher)
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func ConvertToNotificationMessage(record NotificationOutbox) config.NotificationMessage {
	return config.NotificationMessage{
		ID:            record.ID,
		Template:      record.Template,
		OrderId:       record.OrderId,
		StoreId:       record.StoreId,
		RecipientMail: record.RecipientMail,
		Payload:       record.Payload,
		EnqueuedAt:    record.CreatedAt,
		CorrelationId: record.CorrelationId,
	}
}

// EnqueueNotification writes one outbox row in the caller's transaction.
// It never publishes; commit first, dispatch later.
func EnqueueNotification(tx *gorm.DB, template string, orderId int, storeId int,
	recipientMail string, correlationId string, payload map[string]interface{}) error {

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := NotificationOutbox{
		Template:      template,
		OrderId:       orderId,
		StoreId:       storeId,
		RecipientMail: recipientMail,
		Payload:       payloadJSON,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationId,
	}
	return tx.Create(&record).Error
}
