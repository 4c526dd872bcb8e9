package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/risk-monitor/internal/repo"
	"github.com/richardliu001/risk-monitor/internal/service"
	"github.com/shopspring/decimal"
)

func RegisterHandlers(r *gin.Engine, svc *service.IngestService) {
	api := r.Group("/api")
	{
		api.POST("/transactions", submitHandler(svc))
		api.GET("/transactions", listHandler(svc))
		api.GET("/dashboard", dashboardHandler(svc))
	}
	r.GET("/health", healthHandler(svc))
}

// submitReq binds without required tags: field presence is the pipeline's
// validation concern, and a caller-supplied timestamp is dropped on the
// floor by simply not binding it.
type submitReq struct {
	TransactionID string           `json:"transaction_id"`
	UserID        string           `json:"user_id"`
	Amount        *decimal.Decimal `json:"amount"`
	DeviceID      string           `json:"device_id"`
}

func submitHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		t, err := svc.Submit(c, service.SubmitRequest{
			TransactionID: req.TransactionID,
			UserID:        req.UserID,
			Amount:        req.Amount,
			DeviceID:      req.DeviceID,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrMissingFields):
				c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			case errors.Is(err, repo.ErrDuplicateTransaction):
				c.JSON(http.StatusConflict, gin.H{"error": "Duplicate transaction_id"})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			}
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

func listHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := svc.List(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, txs)
	}
}

func dashboardHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Stats(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func healthHandler(svc *service.IngestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Health(c); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "ERROR",
				"database":  "unreachable",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "OK",
			"database":  "connected",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
