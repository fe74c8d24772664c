package http

import (
	"net/http"
	"strings"
	"time"

	"callnet/internal/core/domain"
	"callnet/internal/core/services"
	"callnet/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthHandler issues access tokens. The surrounding platform normally mints
// tokens out of band; this endpoint covers development setups and tooling.
type AuthHandler struct {
	authService services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService services.AuthService, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
	}
}

type IssueTokenRequest struct {
	UserID   string `json:"user_id" binding:"max=100"`
	Username string `json:"username" binding:"required,min=3,max=50"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req IssueTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.UserID = strings.TrimSpace(req.UserID)

	if req.UserID == "" {
		req.UserID = uuid.NewString()
	}
	if err := validation.ValidateUserID(req.UserID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := domain.UserID(req.UserID)
	accessToken, err := h.authService.GenerateToken(userID, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"username":     req.Username,
		"access_token": accessToken,
		"expires_in":   int(h.tokenTTL / time.Second),
	})
}
