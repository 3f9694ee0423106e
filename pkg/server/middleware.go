package server

import (
	"time"

	"github.com/gin-contrib/requestid"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// installMiddlewares tags every request with an id, logs it through zap
// and turns handler panics into 500s.
// Health probes are polled often and are not logged.
func installMiddlewares(router *gin.Engine, logger *zap.Logger) {
	router.Use(requestid.New())
	router.ContextWithFallback = true

	router.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{URLPathHealthz},
	}))
	router.Use(ginzap.RecoveryWithZap(logger, true))
}
