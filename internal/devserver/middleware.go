package devserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oremus-labs/docai-console/internal/metrics"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const (
	requestIDKey = "requestID"
	sessionKey   = "session"
)

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		logger.Info().
			Str("method", method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("request")
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// authMiddleware resolves the bearer token to a live session.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			respondError(c, http.StatusUnauthorized, codeUnauthorized, "authentication required", nil)
			return
		}
		session, err := s.store.GetSession(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondError(c, http.StatusUnauthorized, codeUnauthorized, "session expired or revoked", nil)
				return
			}
			s.internalError(c, err)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func currentSession(c *gin.Context) *store.Session {
	if v, ok := c.Get(sessionKey); ok {
		if session, ok := v.(*store.Session); ok {
			return session
		}
	}
	return nil
}
