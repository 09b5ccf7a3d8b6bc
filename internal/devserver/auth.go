package devserver

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oremus-labs/docai-console/apiclient"
	"github.com/oremus-labs/docai-console/internal/openapi"
	"github.com/oremus-labs/docai-console/internal/store"
)

const tokenPrefix = "dai_"

// Login exchanges the admin credentials for a session token.
func (s *Server) Login(c *gin.Context) {
	var req apiclient.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid login payload")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		badRequest(c, "username and password are required")
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.opts.AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.opts.AdminPassword)) == 1
	if !userOK || !passOK {
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "invalid username or password", nil)
		return
	}

	now := time.Now().UTC()
	session := &store.Session{
		Token:     tokenPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		UserID:    userID(req.Username),
		Username:  req.Username,
		Role:      "admin",
		CreatedAt: now,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}
	if err := s.store.CreateSession(c.Request.Context(), session); err != nil {
		s.internalError(c, err)
		return
	}
	expires := session.ExpiresAt
	respond(c, http.StatusOK, apiclient.LoginResponse{
		AccessToken: session.Token,
		TokenType:   "Bearer",
		ExpiresAt:   &expires,
		User:        sessionUser(session),
	})
}

// Logout revokes the calling session.
func (s *Server) Logout(c *gin.Context) {
	session := currentSession(c)
	if err := s.store.DeleteSession(c.Request.Context(), session.Token); err != nil {
		s.internalError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

// Me returns the calling user.
func (s *Server) Me(c *gin.Context) {
	respond(c, http.StatusOK, sessionUser(currentSession(c)))
}

// Health reports liveness as a bare, unenveloped payload.
func (s *Server) Health(c *gin.Context) {
	status, code := "ok", http.StatusOK
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Warn().Err(err).Msg("datastore ping failed")
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, apiclient.HealthStatus{
		Status:  status,
		Version: s.opts.Version,
		Time:    time.Now().UTC(),
	})
}

// OpenAPISpec serves the service description as JSON.
func (s *Server) OpenAPISpec(c *gin.Context) {
	doc, err := openapi.JSON()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func userID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docai:user:"+username)).String()
}

func sessionUser(session *store.Session) apiclient.User {
	return apiclient.User{ID: session.UserID, Username: session.Username, Role: session.Role}
}
