package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/richardliu001/risk-monitor/internal/model"
	"github.com/richardliu001/risk-monitor/internal/repo"
	"github.com/richardliu001/risk-monitor/internal/risk"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMissingFields means a required submission field was absent.
var ErrMissingFields = errors.New("missing required fields")

// IngestService glues the risk rules and the ledger repository.
type IngestService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewIngestService returns IngestService.
func NewIngestService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *IngestService {
	return &IngestService{repo: r, log: logger}
}

// SubmitRequest carries one candidate transaction. Amount is a pointer so
// "missing" and "zero" stay distinguishable after JSON binding.
type SubmitRequest struct {
	TransactionID string
	UserID        string
	Amount        *decimal.Decimal
	DeviceID      string
}

// Submit runs one submission end-to-end: validate, stamp server time, look
// up history, evaluate rules, persist. The history count and the insert are
// deliberately not one transaction: two concurrent submissions for a user
// may both evaluate against the same stale count. Frequency flagging is
// advisory, and the next read sees both rows.
func (s *IngestService) Submit(ctx context.Context, req SubmitRequest) (*model.Transaction, error) {
	if req.TransactionID == "" || req.UserID == "" || req.Amount == nil || req.DeviceID == "" {
		return nil, ErrMissingFields
	}

	// server clock is authoritative; caller-supplied timestamps are ignored
	now := time.Now().UTC()

	count, err := s.repo.CountByUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	verdict := risk.Evaluate(*req.Amount, count)

	t := &model.Transaction{
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
		Amount:        *req.Amount,
		Timestamp:     now,
		DeviceID:      req.DeviceID,
		RiskFlag:      verdict.RiskFlag,
		RuleTriggered: verdict.RuleTriggered,
	}

	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.CreateTransaction(ctx, tx, t); err != nil {
			return err
		}
		if !verdict.Flagged() {
			return nil
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"transaction_id": t.TransactionID,
			"user_id":        t.UserID,
			"amount":         t.Amount,
			"risk_flag":      *verdict.RiskFlag,
			"rule_triggered": *verdict.RuleTriggered,
		})
		evt := &model.AuditEvent{
			TransactionID: t.TransactionID,
			UserID:        t.UserID,
			RiskFlag:      *verdict.RiskFlag,
			RuleTriggered: *verdict.RuleTriggered,
			Payload:       string(payload),
		}
		return s.repo.CreateAuditEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.InvalidateStats(ctx); err != nil {
		s.log.Warnf("invalidate stats cache: %v", err)
	}
	if verdict.Flagged() {
		s.log.Infow("transaction flagged",
			"transaction_id", t.TransactionID, "user_id", t.UserID,
			"risk_flag", *verdict.RiskFlag, "rule", *verdict.RuleTriggered)
	}
	return t, nil
}

// List returns every ledger record, most recently ingested first.
func (s *IngestService) List(ctx context.Context) ([]model.Transaction, error) {
	return s.repo.ListTransactions(ctx)
}

// Stats returns the dashboard counters, cache-first.
func (s *IngestService) Stats(ctx context.Context) (model.DashboardStats, error) {
	if cached, err := s.repo.GetCachedStats(ctx); err == nil {
		return cached, nil
	}
	stats, err := s.repo.DashboardStats(ctx)
	if err != nil {
		return model.DashboardStats{}, err
	}
	if err := s.repo.CacheStats(ctx, stats); err != nil {
		s.log.Warnf("cache stats: %v", err)
	}
	return stats, nil
}

// Health probes the backing storage.
func (s *IngestService) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Repo exposes underlying repository (unit tests helper).
func (s *IngestService) Repo() repo.RepositoryInterface {
	return s.repo
}
