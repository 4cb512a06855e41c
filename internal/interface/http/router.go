package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/batch-summarizer/internal/infra/config"
)

// NewRouter wires up the status endpoints and returns a configured server.
func NewRouter(cfg *config.Config, handler *StatusHandler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Healthz)
	router.GET("/metrics", gin.WrapH(handler.metrics.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/progress", handler.Progress)
		api.GET("/runs/:id", handler.GetRun)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}
