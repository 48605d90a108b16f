package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"schooladmin/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type impersonateRequest struct {
	UserID string `json:"userId" binding:"required,uuid"`
}

// Login verifies credentials and returns the user, roles and a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.auth.ValidateUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RegisterUser creates an account.
func (h *Handler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	user, err := h.auth.RegisterUser(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Impersonate returns another user's profile and roles. Only admins reach it.
func (h *Handler) Impersonate(c *gin.Context) {
	var req impersonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.auth.GetUserByID(c.Request.Context(), req.UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	h.logger.InfoContext(c.Request.Context(), "impersonation", "actor", claims.Subject, "target", req.UserID)
	c.JSON(http.StatusOK, res)
}

// Me echoes the caller's token claims.
func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	c.JSON(http.StatusOK, gin.H{
		"id":    claims.Subject,
		"email": claims.Email,
		"roles": claims.Roles,
	})
}
