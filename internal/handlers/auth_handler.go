package handlers

import (
	"net/http"

	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AuthHandler handles OTP login requests
type AuthHandler struct {
	authService services.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// SendOTP handles POST /api/auth/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	if req.Purpose == models.OTPPurposePhoneChange {
		respondError(c, http.StatusBadRequest, "INVALID_PURPOSE", "Use /api/user/send-phone-change-otp for phone change OTP", nil)
		return
	}

	result, err := h.authService.SendOTP(c.Request.Context(), req.PhoneNumber, models.OTPPurposeLogin, "")
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, result.Message, result)
}

// VerifyOTP handles POST /api/auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.VerifyOTP(c.Request.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Login successful", result)
}
