// Package api is the HTTP surface of the deals refresher.
package api

import (
	"time"

	"sjsage522/dealrefresher/logger"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	Deals     DealsService
	Refresher Refresher
	Debug     bool
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	handler := NewDealsHandler(cfg.Deals, cfg.Refresher)

	router.GET("/healthz", Health)

	api := router.Group("/api")
	{
		api.GET("/deals", handler.ListDeals)
		api.POST("/deals/refresh", handler.Refresh)
		api.POST("/promos", handler.PromoLabels)
		api.POST("/bundles", handler.Bundles)
	}

	return router
}

// requestLogger logs one line per request through the api component logger.
func requestLogger() gin.HandlerFunc {
	log := logger.ForAPI()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := log.Debug()
		if c.Writer.Status() >= 500 {
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}
