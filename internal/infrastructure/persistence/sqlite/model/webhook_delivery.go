package model

// WebhookDelivery records every delivery id GitHub has sent us. Rows are
// inserted before processing starts and never deleted; only timestamp and
// status metadata live here, never payload fields.
type WebhookDelivery struct {
	DeliveryID  string `gorm:"column:delivery_id;type:text;primaryKey"`
	EventType   string `gorm:"column:event_type;type:text;not null"`
	ReceivedAt  string `gorm:"column:received_at;type:text;not null"`
	Processed   bool   `gorm:"column:processed;not null;default:0"`
	ProcessedAt string `gorm:"column:processed_at;type:text;not null;default:''"`
	Error       string `gorm:"column:error;type:text;not null;default:''"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
