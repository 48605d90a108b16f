package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"schooladmin/internal/attendance"
	"schooladmin/internal/auth"
)

// AuthService is the auth behaviour the HTTP layer needs.
type AuthService interface {
	ValidateUser(ctx context.Context, email, password string) (auth.AuthenticatedUser, error)
	RegisterUser(ctx context.Context, name, email, password string) (auth.PublicUser, error)
	GetUserByID(ctx context.Context, userID string) (auth.AuthenticatedUser, error)
}

// AttendanceService is the attendance behaviour the HTTP layer needs.
type AttendanceService interface {
	SaveAttendance(ctx context.Context, records []attendance.Record) error
	GetAttendanceRecords(ctx context.Context, f attendance.Filter) ([]attendance.EnrichedRecord, error)
	ListHistory(ctx context.Context, entityID int64, limit int) ([]attendance.HistoryEntry, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler serves the auth and attendance endpoints.
type Handler struct {
	auth       AuthService
	attendance AttendanceService
	tokens     *auth.Issuer
	checks     map[string]HealthCheck
	logger     *slog.Logger
}

// New creates a handler. checks are reported by /healthz under their key.
func New(authSvc AuthService, attendanceSvc AttendanceService, tokens *auth.Issuer, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	registerValidators()
	return &Handler{
		auth:       authSvc,
		attendance: attendanceSvc,
		tokens:     tokens,
		checks:     checks,
		logger:     logger,
	}
}

// Register mounts all routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.Healthz)

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/register", h.RegisterUser)
		authGroup.GET("/me", auth.BearerAuth(h.tokens), h.Me)
		authGroup.POST("/impersonate", auth.BearerAuth(h.tokens), auth.RequireRole("admin"), h.Impersonate)
	}

	staff := auth.RequireRole("admin", "hod", "faculty")
	att := r.Group("/attendance", auth.BearerAuth(h.tokens))
	{
		att.POST("", staff, h.SaveAttendance)
		att.GET("", h.GetAttendance)
		att.GET("/history/:entityId", staff, h.AttendanceHistory)
	}
}

// Healthz reports dependency health.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		healthy := check(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
