package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"boostpanel/internal/config"
	"boostpanel/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "boostpanel_test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.Order{},
		&model.FundRequest{},
		&model.WalletTransaction{},
		&model.HistoryItem{},
		&model.Message{},
		&model.OutboxMessage{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Business: config.BusinessConfig{
			PricePer10Units: 100,
			ReferralPercent: 7,
			MaxRetryCount:   3,
		},
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				OrderEvents: "boostpanel.order.events",
				FundEvents:  "boostpanel.fund.events",
				Broadcast:   "boostpanel.broadcast",
			},
		},
	}

	return SetupRouter(db, rdb, cfg)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, *apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := &apiResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
	return w, resp
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestRegisterAndProfileFlow(t *testing.T) {
	router := setupTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"uid":   "u1",
		"name":  "Alice",
		"email": "alice@example.com",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)

	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/user/profile?uid=u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Code)
	assert.Contains(t, string(resp.Data), `"uid":"u1"`)

	// 新钱包余额为零
	w, resp = doJSON(t, router, http.MethodGet, "/api/v1/wallet/balance?uid=u1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(resp.Data), `"balance":0`)
}

func TestRegisterMissingUID(t *testing.T) {
	router := setupTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"name": "Alice",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 400, resp.Code)
}

func TestCreateOrderInsufficientBalanceCode(t *testing.T) {
	router := setupTestRouter(t)

	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"uid":  "u1",
		"name": "Alice",
	})
	require.Equal(t, 0, resp.Code)

	// 零余额下单：业务码 1003
	_, resp = doJSON(t, router, http.MethodPost, "/api/v1/order/create", gin.H{
		"request_id": "req-1",
		"user_uid":   "u1",
		"service":    "followers",
		"link":       "https://example.com/profile",
		"quantity":   10,
	})
	assert.Equal(t, 1003, resp.Code)
}

func TestFundApprovalFlow(t *testing.T) {
	router := setupTestRouter(t)

	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", gin.H{
		"uid":  "u1",
		"name": "Alice",
	})
	require.Equal(t, 0, resp.Code)

	_, resp = doJSON(t, router, http.MethodPost, "/api/v1/fund/create", gin.H{
		"request_id":     "fr-1",
		"user_uid":       "u1",
		"amount":         45000,
		"transaction_id": "upi-txn-001",
	})
	require.Equal(t, 0, resp.Code)

	var fundReq model.FundRequest
	require.NoError(t, json.Unmarshal(resp.Data, &fundReq))

	_, resp = doJSON(t, router, http.MethodPost, "/api/v1/admin/fund/update", gin.H{
		"request_no": fundReq.RequestNo,
		"action":     "Approved",
	})
	require.Equal(t, 0, resp.Code)

	_, resp = doJSON(t, router, http.MethodGet, "/api/v1/wallet/balance?uid=u1", nil)
	assert.Contains(t, string(resp.Data), `"balance":45000`)

	// 重复批准：业务码 1009
	_, resp = doJSON(t, router, http.MethodPost, "/api/v1/admin/fund/update", gin.H{
		"request_no": fundReq.RequestNo,
		"action":     "Approved",
	})
	assert.Equal(t, 1009, resp.Code)
}

func TestUnknownOrderReturnsNotFoundCode(t *testing.T) {
	router := setupTestRouter(t)

	_, resp := doJSON(t, router, http.MethodPost, "/api/v1/admin/order/update", gin.H{
		"order_no": "ORD-missing",
		"action":   "Completed",
	})
	assert.Equal(t, 1001, resp.Code)
}
