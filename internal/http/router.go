package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/protocol"
	"github.com/saker-ai/spiritio-client/internal/router"
)

// StatusSource reports the state of the running session.
type StatusSource interface {
	Status() router.Status
}

// ParticipantSource lists the room's participants.
type ParticipantSource interface {
	Guests() []protocol.Guest
}

// NewRouter builds the local status API.
func NewRouter(status StatusSource, participants ParticipantSource, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/session", func(c *gin.Context) {
		c.JSON(http.StatusOK, status.Status())
	})

	engine.GET("/participants", func(c *gin.Context) {
		guests := []protocol.Guest{}
		if participants != nil {
			guests = append(guests, participants.Guests()...)
		}
		c.JSON(http.StatusOK, gin.H{"participants": guests, "count": len(guests)})
	})

	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
		)
	}
}
