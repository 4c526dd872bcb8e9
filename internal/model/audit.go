package model

import "time"

// AuditEvent is an outbox row for a flagged transaction. Written in the
// same DB transaction as the ledger insert; drained to Kafka by the poller.
type AuditEvent struct {
	ID            uint64    `gorm:"primaryKey"`
	TransactionID string    `gorm:"size:64;not null"`
	UserID        string    `gorm:"size:64;not null"`
	RiskFlag      string    `gorm:"size:32;not null"`
	RuleTriggered string    `gorm:"size:32;not null"`
	Payload       string    `gorm:"type:jsonb;not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	Published     bool      `gorm:"not null;default:false"`
	PublishedAt   *time.Time
}

func (AuditEvent) TableName() string { return "risk_audit" }
