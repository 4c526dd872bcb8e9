package http

import (
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/risk-monitor/internal/config"
	"github.com/richardliu001/risk-monitor/internal/service"
	"go.uber.org/zap"
)

func NewRouter(svc *service.IngestService, cfg *config.Config, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	RegisterHandlers(r, svc)
	if dir := cfg.Server.StaticDir; dir != "" {
		r.StaticFile("/", filepath.Join(dir, "index.html"))
		r.StaticFile("/app.js", filepath.Join(dir, "app.js"))
		r.StaticFile("/style.css", filepath.Join(dir, "style.css"))
	}
	return r
}
