package api

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"dirauth/pkg/audit"
	"dirauth/pkg/auth"
	"dirauth/pkg/directory"
	"dirauth/pkg/errors"
	"dirauth/pkg/health"
	"dirauth/pkg/logger"
	"dirauth/pkg/pool"
)

// Authenticator verifies user credentials. *auth.Authenticator is the
// production implementation.
type Authenticator interface {
	Authenticate(username, password string) (*auth.Result, error)
}

// PoolController is the slice of the pool the API needs.
type PoolController interface {
	Stats() pool.Stats
	Reconfigure(warmStart, maxSize int, s directory.Settings)
	SetRoleMapping(mapping string)
}

// Handler encapsulates the API handlers
type Handler struct {
	authenticator Authenticator
	pool          PoolController
	store         audit.Store
	monitor       *health.Monitor
}

// NewHandler creates a new API handler
func NewHandler(authenticator Authenticator, p PoolController, store audit.Store, monitor *health.Monitor) *Handler {
	return &Handler{
		authenticator: authenticator,
		pool:          p,
		store:         store,
		monitor:       monitor,
	}
}

// AuthRequest is the authentication request body
type AuthRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// HandleAuth verifies a user's credentials through the pool
func (h *Handler) HandleAuth(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrMsgInvalidRequest)
		return
	}

	start := time.Now()
	result, err := h.authenticator.Authenticate(req.Username, req.Password)

	rec := &audit.AuthRecord{
		Username:   req.Username,
		Success:    err == nil,
		SourceIP:   c.ClientIP(),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if result != nil {
		rec.DN = result.DN
	}
	if err != nil {
		rec.Detail = err.Error()
	}
	if h.store != nil {
		if auditErr := h.store.RecordAuth(rec); auditErr != nil {
			logger.Get().WarnWith("audit write failed", "error", auditErr)
		}
	}

	switch {
	case err == nil:
		RespondSuccess(c, result, "")
	case stderrors.Is(err, errors.ErrPoolExhausted):
		RespondError(c, http.StatusServiceUnavailable, ErrMsgPoolExhausted)
	case stderrors.Is(err, errors.ErrConnectFailed):
		RespondError(c, http.StatusBadGateway, ErrMsgBackendDown)
	case stderrors.Is(err, errors.ErrAuthFailed), stderrors.Is(err, errors.ErrUserNotFound):
		RespondError(c, http.StatusUnauthorized, ErrMsgUnauthorized)
	default:
		RespondError(c, http.StatusInternalServerError, ErrMsgInternalServer)
	}
}

// HandlePoolStats returns a snapshot of pool occupancy
func (h *Handler) HandlePoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pool.Stats())
}

// ReconfigureRequest is the online reconfiguration request body
type ReconfigureRequest struct {
	WarmStart    int    `json:"warm_start"`
	MaxSize      int    `json:"max_size" binding:"required"`
	Host         string `json:"host" binding:"required"`
	Port         int    `json:"port" binding:"required"`
	FallbackHost string `json:"fallback_host"`
	FallbackPort int    `json:"fallback_port"`
	UseSSL       bool   `json:"use_ssl"`
	UseTLS       bool   `json:"use_tls"`
	CAPath       string `json:"ca_path"`
	BindDN       string `json:"bind_dn"`
	BindPassword string `json:"bind_password"`
	RoleMapping  string `json:"role_mapping"`
}

// HandleReconfigure resizes the pool and replaces backend parameters online
func (h *Handler) HandleReconfigure(c *gin.Context) {
	var req ReconfigureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, ErrMsgInvalidRequest)
		return
	}
	if req.MaxSize <= 0 || req.WarmStart < 0 || req.WarmStart > req.MaxSize {
		RespondError(c, http.StatusBadRequest, "warm_start must be between 0 and max_size")
		return
	}

	h.pool.Reconfigure(req.WarmStart, req.MaxSize, directory.Settings{
		Host:         req.Host,
		Port:         req.Port,
		FallbackHost: req.FallbackHost,
		FallbackPort: req.FallbackPort,
		UseSSL:       req.UseSSL,
		UseTLS:       req.UseTLS,
		CAPath:       req.CAPath,
		BindDN:       req.BindDN,
		BindPassword: req.BindPassword,
	})
	if req.RoleMapping != "" {
		h.pool.SetRoleMapping(req.RoleMapping)
	}

	if h.store != nil {
		if err := h.store.RecordPoolEvent("reconfigure", h.reconfigureDetail(req)); err != nil {
			logger.Get().WarnWith("audit write failed", "error", err)
		}
	}

	logger.Get().InfoWith("pool reconfigured", "warm_start", req.WarmStart, "max_size", req.MaxSize)
	RespondSuccess(c, h.pool.Stats(), "pool reconfigured")
}

func (h *Handler) reconfigureDetail(req ReconfigureRequest) string {
	return fmt.Sprintf("warm_start=%d max_size=%d host=%s", req.WarmStart, req.MaxSize, req.Host)
}

// HandleHealth returns the daemon health report
func (h *Handler) HandleHealth(c *gin.Context) {
	report := h.monitor.GetHealth(h.pool.Stats())

	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// HandleRecentAuths returns the newest audit records
func (h *Handler) HandleRecentAuths(c *gin.Context) {
	if h.store == nil {
		RespondError(c, http.StatusServiceUnavailable, "audit store not available")
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	records, err := h.store.RecentAuths(limit)
	if err != nil {
		logger.Get().ErrorWithErr("audit read failed", err)
		RespondError(c, http.StatusInternalServerError, ErrMsgInternalServer)
		return
	}
	RespondSuccess(c, records, "")
}

// SetupRouter initializes the Gin router with all API routes
func SetupRouter(h *Handler, adminToken string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	router.GET("/healthz", h.HandleHealth)

	apiGroup := router.Group("/api")
	{
		apiGroup.POST("/auth", h.HandleAuth)
		apiGroup.GET("/pool/stats", h.HandlePoolStats)
		apiGroup.GET("/pool/watch", h.HandlePoolWatch)

		admin := apiGroup.Group("", AdminTokenMiddleware(adminToken))
		{
			admin.POST("/pool/reconfigure", h.HandleReconfigure)
			admin.GET("/audit/recent", h.HandleRecentAuths)
		}
	}

	return router
}
