package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// amount is a JSON number on the wire, not a quoted string
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction is one ledger entry. Rows are append-only: there is no
// update or delete path anywhere in the service.
type Transaction struct {
	TransactionID string          `gorm:"primaryKey;size:64" json:"transaction_id"`
	UserID        string          `gorm:"size:64;not null;index" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	Timestamp     time.Time       `gorm:"not null" json:"timestamp"`
	DeviceID      string          `gorm:"size:64;not null" json:"device_id"`
	RiskFlag      *string         `gorm:"size:32;index" json:"risk_flag,omitempty"`
	RuleTriggered *string         `gorm:"size:32" json:"rule_triggered,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// DashboardStats is recomputed on read, never stored.
type DashboardStats struct {
	TotalTransactions   int64 `json:"total_transactions"`
	FlaggedTransactions int64 `json:"flagged_transactions"`
	HighRisk            int64 `json:"high_risk"`
	Suspicious          int64 `json:"suspicious"`
}
