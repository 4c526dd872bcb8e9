package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/risk-monitor/internal/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrDuplicateTransaction is returned when a transaction_id already exists.
var ErrDuplicateTransaction = errors.New("duplicate transaction_id")

const (
	statsCacheKey = "dashboard:stats"
	statsCacheTTL = 30 * time.Second
)

// RepositoryInterface restricts Repo methods (方便单元测试 mock)
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	CountByUser(ctx context.Context, userID string) (int64, error)
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	DashboardStats(ctx context.Context) (model.DashboardStats, error)
	CreateAuditEvent(ctx context.Context, tx *gorm.DB, evt *model.AuditEvent) error
	PollAudit(ctx context.Context, limit int) ([]model.AuditEvent, error)
	MarkAuditPublished(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.AuditEvent) error
	CacheStats(ctx context.Context, stats model.DashboardStats) error
	GetCachedStats(ctx context.Context) (model.DashboardStats, error)
	InvalidateStats(ctx context.Context) error
	Ping(ctx context.Context) error
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// CountByUser returns the number of committed transactions for a user.
func (r *Repository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// CreateTransaction inserts one ledger row. Uniqueness of transaction_id is
// enforced by the primary key, so two concurrent inserts of the same id can
// never both commit; the losing one surfaces as ErrDuplicateTransaction.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	if err := tx.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTransaction
		}
		return err
	}
	return nil
}

// ListTransactions returns the full ledger, most recently ingested first.
func (r *Repository) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&txs).Error
	return txs, err
}

// DashboardStats computes all four counters in one query so the result is a
// single consistent read, never torn across inserts.
func (r *Repository) DashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var s model.DashboardStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total_transactions,
			COALESCE(SUM(CASE WHEN risk_flag IS NOT NULL THEN 1 ELSE 0 END), 0) AS flagged_transactions,
			COALESCE(SUM(CASE WHEN risk_flag = 'HIGH_RISK' THEN 1 ELSE 0 END), 0) AS high_risk,
			COALESCE(SUM(CASE WHEN risk_flag = 'SUSPICIOUS' THEN 1 ELSE 0 END), 0) AS suspicious
		FROM transactions`).Scan(&s).Error
	return s, err
}

// CreateAuditEvent writes an outbox row.
func (r *Repository) CreateAuditEvent(ctx context.Context, tx *gorm.DB, evt *model.AuditEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollAudit pulls unpublished audit rows.
func (r *Repository) PollAudit(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	var evts []model.AuditEvent
	err := r.db.WithContext(ctx).Where("published = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkAuditPublished sets the published flag.
func (r *Repository) MarkAuditPublished(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.AuditEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"published": true, "published_at": &now}).Error
}

// PublishEvent sends one audit row to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.AuditEvent) error {
	msg := kafka.Message{
		Key:   []byte(evt.TransactionID),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheStats writes the dashboard counters to Redis.
func (r *Repository) CacheStats(ctx context.Context, stats model.DashboardStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, statsCacheKey, data, statsCacheTTL).Err()
}

// GetCachedStats reads the dashboard counters from Redis.
func (r *Repository) GetCachedStats(ctx context.Context) (model.DashboardStats, error) {
	var s model.DashboardStats
	data, err := r.rdb.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	return s, nil
}

// InvalidateStats drops the cached counters after a successful insert.
func (r *Repository) InvalidateStats(ctx context.Context) error {
	return r.rdb.Del(ctx, statsCacheKey).Err()
}

// Ping runs a trivial probe against the backing database.
func (r *Repository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return fmt.Errorf("storage probe: %w", err)
	}
	return nil
}
