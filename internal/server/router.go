package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lumetrymedia/stickerbooth/backend/internal/auth"
	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
	"github.com/lumetrymedia/stickerbooth/backend/internal/presets"
	"github.com/lumetrymedia/stickerbooth/backend/internal/submissions"
	"go.uber.org/zap"
)

const (
	roleContextKey        = "stickerbooth_role"
	processorSecretHeader = "X-Processor-Secret"
)

var (
	errMissingTokenIssuer        = errors.New("token issuer dependency required")
	errMissingSubmissionsService = errors.New("submissions service dependency required")
	errMissingEventsService      = errors.New("events service dependency required")
	errMissingPresetsService     = errors.New("presets service dependency required")
	errInvalidAuthorization      = errors.New("authorization header missing or invalid")
)

// RoleTokenManager issues and validates role-scoped client tokens.
type RoleTokenManager interface {
	IssueRoleToken(role auth.Role) (string, int64, error)
	ValidateToken(token string) (auth.Role, error)
}

// Credentials holds the shared passwords and the processor secret.
type Credentials struct {
	AdminPassword   string
	CapturePassword string
	ProcessorSecret string
}

// Dependencies wires the HTTP surface to the domain services.
type Dependencies struct {
	TokenManager RoleTokenManager
	Credentials  Credentials
	Submissions  *submissions.Service
	Events       *events.Service
	Presets      *presets.Service
	Heartbeat    *HeartbeatTracker
	Clock        func() time.Time
	ImageClient  *http.Client
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the API server.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenIssuer
	}
	if deps.Submissions == nil {
		return nil, errMissingSubmissionsService
	}
	if deps.Events == nil {
		return nil, errMissingEventsService
	}
	if deps.Presets == nil {
		return nil, errMissingPresetsService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	heartbeat := deps.Heartbeat
	if heartbeat == nil {
		heartbeat = NewHeartbeatTracker()
	}
	imageClient := deps.ImageClient
	if imageClient == nil {
		imageClient = &http.Client{Timeout: 30 * time.Second}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", processorSecretHeader},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		tokens:      deps.TokenManager,
		credentials: deps.Credentials,
		submissions: deps.Submissions,
		events:      deps.Events,
		presets:     deps.Presets,
		heartbeat:   heartbeat,
		clock:       clock,
		imageClient: imageClient,
		logger:      logger,
	}

	router.GET("/health", handler.handleHealth)
	router.POST("/api/auth/login/admin", handler.handleAdminLogin)
	router.POST("/api/auth/login/capture", handler.handleCaptureLogin)

	kiosk := router.Group("/api")
	kiosk.Use(handler.requireRoles(auth.RoleAdmin, auth.RoleCapture))
	kiosk.POST("/submissions", handler.handleCreateSubmission)
	kiosk.GET("/events", handler.handleListEvents)
	kiosk.GET("/events/:id", handler.handleGetEvent)

	admin := router.Group("/api")
	admin.Use(handler.requireRoles(auth.RoleAdmin))
	admin.GET("/submissions", handler.handleListSubmissions)
	admin.GET("/submissions/:id/thumbnail", handler.handleSubmissionThumbnail)
	admin.GET("/submissions/:id/download/:index", handler.handleDownloadImage)
	admin.POST("/submissions/:id/approve", handler.handleApproveSubmission)
	admin.POST("/submissions/:id/reject", handler.handleRejectSubmission)
	admin.POST("/submissions/:id/add-to-queue", handler.handleAddToQueue)
	admin.POST("/submissions/:id/retry", handler.handleRetrySubmission)
	admin.POST("/submissions/:id/regenerate", handler.handleRegenerateSubmission)
	admin.POST("/submissions/:id/verify-status", handler.handleVerifySubmission)
	admin.DELETE("/submissions/:id", handler.handleDeleteSubmission)
	admin.POST("/events", handler.handleCreateEvent)
	admin.PUT("/events/:id", handler.handleUpdateEvent)
	admin.POST("/events/:id/archive", handler.handleArchiveEvent)
	admin.DELETE("/events/:id", handler.handleDeleteEvent)
	admin.GET("/presets", handler.handleListPresets)
	admin.POST("/presets", handler.handleCreatePreset)
	admin.DELETE("/presets/:id", handler.handleDeletePreset)
	admin.GET("/processor/status", handler.handleProcessorStatus)

	shared := router.Group("/api")
	shared.Use(handler.requireAdminOrProcessor)
	shared.GET("/submissions/:id", handler.handleGetSubmission)
	shared.PATCH("/submissions/:id", handler.handleUpdateSubmissionFields)
	shared.POST("/submissions/:id/status", handler.handleTransitionStatus)

	processor := router.Group("/api")
	processor.Use(handler.requireProcessorSecret)
	processor.POST("/queue/claim", handler.handleClaimNext)
	processor.POST("/queue/recover", handler.handleRecoverStale)
	processor.POST("/processor/heartbeat", handler.handleHeartbeat)
	processor.POST("/submissions/:id/fail", handler.handleFailSubmission)
	processor.POST("/submissions/:id/logs", handler.handleAppendLog)
	processor.POST("/submissions/:id/images", handler.handleCompleteWithImages)

	return router, nil
}

type httpHandler struct {
	tokens      RoleTokenManager
	credentials Credentials
	submissions *submissions.Service
	events      *events.Service
	presets     *presets.Service
	heartbeat   *HeartbeatTracker
	clock       func() time.Time
	imageClient *http.Client
	logger      *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"processor_healthy": h.heartbeat.Healthy(h.clock().UTC()),
	})
}

// requireRoles admits bearer-token requests whose role is in the allowed set.
func (h *httpHandler) requireRoles(allowed ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := h.roleFromBearer(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
			return
		}
		for _, candidate := range allowed {
			if role == candidate {
				c.Set(roleContextKey, string(role))
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

// requireProcessorSecret admits requests carrying the processor shared secret.
func (h *httpHandler) requireProcessorSecret(c *gin.Context) {
	if !auth.SecretMatches(h.credentials.ProcessorSecret, c.GetHeader(processorSecretHeader)) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(roleContextKey, string(auth.RoleProcessor))
	c.Next()
}

// requireAdminOrProcessor admits either an admin bearer token or the
// processor shared secret.
func (h *httpHandler) requireAdminOrProcessor(c *gin.Context) {
	if auth.SecretMatches(h.credentials.ProcessorSecret, c.GetHeader(processorSecretHeader)) {
		c.Set(roleContextKey, string(auth.RoleProcessor))
		c.Next()
		return
	}
	role, err := h.roleFromBearer(c)
	if err != nil || role != auth.RoleAdmin {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(roleContextKey, string(role))
	c.Next()
}

func (h *httpHandler) roleFromBearer(c *gin.Context) (auth.Role, error) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errInvalidAuthorization
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errInvalidAuthorization
	}
	role, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		return "", err
	}
	return role, nil
}
