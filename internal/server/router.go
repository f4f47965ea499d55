// Package server exposes the HTTP API: authentication, record storage and
// search, per-user favorites and notes, and the admin surface.
package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/fetch"
	"github.com/archivelab/bookhaven/internal/library"
	"github.com/archivelab/bookhaven/internal/users"
)

const sessionContextKey = "bookhaven_session"

var (
	errMissingUsersService   = errors.New("users service dependency required")
	errMissingTokenIssuer    = errors.New("token issuer dependency required")
	errMissingLibraryService = errors.New("library service dependency required")
	errMissingFetchService   = errors.New("fetch service dependency required")
	errInvalidAuthorization  = errors.New("authorization header missing or invalid")
)

// Dependencies wires the services the HTTP layer fronts.
type Dependencies struct {
	Users   *users.Service
	Tokens  *auth.TokenIssuer
	Library *library.Service
	Fetch   *fetch.Service
	Logger  *zap.Logger
}

// NewHTTPHandler builds the gin router with all routes registered.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Users == nil {
		return nil, errMissingUsersService
	}
	if deps.Tokens == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Library == nil {
		return nil, errMissingLibraryService
	}
	if deps.Fetch == nil {
		return nil, errMissingFetchService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		users:   deps.Users,
		tokens:  deps.Tokens,
		library: deps.Library,
		fetch:   deps.Fetch,
		logger:  logger,
	}

	router.POST("/auth/login", handler.handleLogin)
	router.POST("/auth/register", handler.handleRegister)
	router.POST("/auth/guest", handler.handleGuest)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/records", handler.handleListRecords)
	protected.GET("/records/:id", handler.handleGetRecord)
	protected.POST("/records", handler.handleStoreRecords)
	protected.DELETE("/records/:id", handler.handleDeleteRecord)
	protected.GET("/search/title", handler.handleSearchTitle)
	protected.GET("/search/time", handler.handleSearchTime)
	protected.POST("/search/online", handler.handleSearchOnline)
	protected.POST("/records/:id/favorite", handler.handleToggleFavorite)
	protected.PUT("/records/:id/note", handler.handleUpdateNote)
	protected.GET("/favorites", handler.handleFavorites)
	protected.GET("/metadata", handler.handleUserMetadata)
	protected.GET("/admin/log", handler.handleAdminLog)
	protected.POST("/admin/rebuild", handler.handleAdminRebuild)
	protected.GET("/admin/stats", handler.handleAdminStats)
	protected.GET("/admin/analytics", handler.handleAdminAnalytics)

	return router, nil
}

type httpHandler struct {
	users   *users.Service
	tokens  *auth.TokenIssuer
	library *library.Service
	fetch   *fetch.Service
	logger  *zap.Logger
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	session, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(sessionContextKey, session)
	c.Next()
}

// sessionFrom returns the authenticated session the middleware stored.
func sessionFrom(c *gin.Context) auth.Session {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return auth.Session{}
	}
	session, ok := value.(auth.Session)
	if !ok {
		return auth.Session{}
	}
	return session
}

// writeServiceError maps service-layer failures onto HTTP statuses.
func (h *httpHandler) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, library.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, library.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, fetch.ErrEmptyQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
	case errors.Is(err, fetch.ErrUpstream):
		h.logger.Warn("online search failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream_failed"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
