package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v8"
	"github.com/richardliu001/risk-monitor/internal/config"
	"github.com/richardliu001/risk-monitor/internal/model"
	"github.com/richardliu001/risk-monitor/internal/repo"
	"github.com/richardliu001/risk-monitor/internal/service"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Transaction{}, &model.AuditEvent{}))

	rdb, _ := redismock.NewClientMock()
	repository := repo.NewRepository(db, rdb, &kafka.Writer{}, zap.NewNop().Sugar())
	svc := service.NewIngestService(repository, zap.NewNop().Sugar())

	cfg := &config.Config{RateLimit: config.RateLimitConfig{RPS: 1000, Burst: 1000}}
	return NewRouter(svc, cfg, zap.NewNop().Sugar())
}

func doJSON(r *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "127.0.0.1:12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var parsed map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &parsed)
	return w, parsed
}

func TestSubmit_CleanTransaction(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX1","user_id":"U1","amount":500,"device_id":"D1"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "TX1", body["transaction_id"])
	assert.Equal(t, "U1", body["user_id"])
	assert.EqualValues(t, 500, body["amount"])
	assert.NotEmpty(t, body["timestamp"])
	_, hasFlag := body["risk_flag"]
	_, hasRule := body["rule_triggered"]
	assert.False(t, hasFlag)
	assert.False(t, hasRule)
}

func TestSubmit_HighRisk(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX2","user_id":"U1","amount":25000,"device_id":"D1"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "HIGH_RISK", body["risk_flag"])
	assert.Equal(t, "Rule1", body["rule_triggered"])
}

func TestSubmit_FrequencyFlagsFourth(t *testing.T) {
	r := newTestRouter(t)

	for i, id := range []string{"TX3", "TX4", "TX5"} {
		w, body := doJSON(r, http.MethodPost, "/api/transactions",
			fmt.Sprintf(`{"transaction_id":"%s","user_id":"U2","amount":100,"device_id":"D1"}`, id))
		assert.Equal(t, http.StatusCreated, w.Code)
		_, hasFlag := body["risk_flag"]
		assert.False(t, hasFlag, "submission %d should be clean", i+1)
	}

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX6","user_id":"U2","amount":100,"device_id":"D1"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SUSPICIOUS", body["risk_flag"])
	assert.Equal(t, "Rule2", body["rule_triggered"])
}

func TestSubmit_Duplicate(t *testing.T) {
	r := newTestRouter(t)

	w, _ := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX1","user_id":"U1","amount":500,"device_id":"D1"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX1","user_id":"U9","amount":1,"device_id":"D9"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Duplicate transaction_id", body["error"])

	// stored record is the original
	w, _ = doJSON(r, http.MethodGet, "/api/transactions", "")
	var txs []map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs, 1)
	assert.Equal(t, "U1", txs[0]["user_id"])
}

func TestSubmit_MissingDeviceID(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX7","user_id":"U1","amount":100}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", body["error"])

	// nothing persisted
	w, _ = doJSON(r, http.MethodGet, "/api/transactions", "")
	var txs []map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs, 0)
}

func TestSubmit_NonNumericAmount(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX8","user_id":"U1","amount":"not-a-number","device_id":"D1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing required fields", body["error"])
}

func TestSubmit_CallerTimestampIgnored(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX9","user_id":"U1","amount":100,"device_id":"D1","timestamp":"1999-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	ts, _ := body["timestamp"].(string)
	assert.NotEmpty(t, ts)
	assert.False(t, strings.HasPrefix(ts, "1999"))
}

func TestListTransactions_NewestFirst(t *testing.T) {
	r := newTestRouter(t)

	for _, id := range []string{"TX1", "TX2", "TX3"} {
		doJSON(r, http.MethodPost, "/api/transactions",
			fmt.Sprintf(`{"transaction_id":"%s","user_id":"U1","amount":10,"device_id":"D1"}`, id))
	}

	w, _ := doJSON(r, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var txs []model.Transaction
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	assert.Len(t, txs, 3)
	for i := 1; i < len(txs); i++ {
		assert.False(t, txs[i-1].CreatedAt.Before(txs[i].CreatedAt))
	}
}

func TestDashboard(t *testing.T) {
	r := newTestRouter(t)

	doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX1","user_id":"U1","amount":500,"device_id":"D1"}`)
	doJSON(r, http.MethodPost, "/api/transactions",
		`{"transaction_id":"TX2","user_id":"U1","amount":25000,"device_id":"D1"}`)

	w, body := doJSON(r, http.MethodGet, "/api/dashboard", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total_transactions"])
	assert.EqualValues(t, 1, body["flagged_transactions"])
	assert.EqualValues(t, 1, body["high_risk"])
	assert.EqualValues(t, 0, body["suspicious"])
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	w, body := doJSON(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "connected", body["database"])
}
