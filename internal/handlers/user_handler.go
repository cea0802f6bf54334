package handlers

import (
	"github.com/ArowuTest/clinic-membership-backend/internal/middleware"
	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserHandler handles profile requests for the authenticated user
type UserHandler struct {
	userService services.UserService
	authService services.AuthService
	logger      *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserService, authService services.AuthService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		authService: authService,
		logger:      logger,
	}
}

// GetProfile handles GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	profile, err := h.userService.GetProfile(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Profile retrieved successfully", profile)
}

// UpdateProfile handles PUT /api/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	profile, err := h.userService.UpdateProfile(c.Request.Context(), c.GetString(middleware.ContextUserID), req)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Profile updated successfully", profile)
}

// SendPhoneChangeOTP handles POST /api/user/send-phone-change-otp
func (h *UserHandler) SendPhoneChangeOTP(c *gin.Context) {
	var req models.PhoneChangeOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.authService.SendOTP(c.Request.Context(), req.NewPhoneNumber, models.OTPPurposePhoneChange, c.GetString(middleware.ContextUserID))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, result.Message, result)
}

// UpdatePhone handles PUT /api/user/phone
func (h *UserHandler) UpdatePhone(c *gin.Context) {
	var req models.UpdatePhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := c.GetString(middleware.ContextUserID)
	// The code is spent once verified. If the number is taken before the
	// update lands, the request fails with PHONE_EXISTS and a new code is needed.
	if err := h.authService.VerifyPhoneChangeOTP(ctx, req.NewPhoneNumber, req.OTPCode, userID); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	if err := h.userService.UpdatePhone(ctx, userID, req.NewPhoneNumber); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	profile, err := h.userService.GetProfile(ctx, userID)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Phone number updated successfully", profile)
}
