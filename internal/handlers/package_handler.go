package handlers

import (
	"net/http"

	"github.com/ArowuTest/clinic-membership-backend/internal/middleware"
	"github.com/ArowuTest/clinic-membership-backend/internal/models"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PackageHandler handles package and subscription requests
type PackageHandler struct {
	packageService services.PackageService
	logger         *zap.Logger
}

// NewPackageHandler creates a new PackageHandler
func NewPackageHandler(packageService services.PackageService, logger *zap.Logger) *PackageHandler {
	return &PackageHandler{
		packageService: packageService,
		logger:         logger,
	}
}

// GetAvailable handles GET /api/packages/available
func (h *PackageHandler) GetAvailable(c *gin.Context) {
	pkg, err := h.packageService.GetAvailablePackage(c.Request.Context())
	if services.KindOf(err) == services.KindPackageNotFound {
		respondError(c, http.StatusNotFound, "NO_PACKAGES_AVAILABLE", "No packages available for purchase", nil)
		return
	}
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Available package retrieved successfully", gin.H{"package": pkg})
}

// Purchase handles POST /api/packages/purchase
func (h *PackageHandler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	view, err := h.packageService.Purchase(c.Request.Context(), c.GetString(middleware.ContextUserID), req.PackageID, req.UserInfo)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Package purchased successfully", gin.H{"subscription": view})
}

// History handles GET /api/packages/history
func (h *PackageHandler) History(c *gin.Context) {
	history, err := h.packageService.History(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	respondOK(c, "Package history retrieved successfully", gin.H{"history": history})
}

// UpdatePaymentStatus handles PUT /api/packages/subscription/:id/status
func (h *PackageHandler) UpdatePaymentStatus(c *gin.Context) {
	var req models.PaymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	id := c.Param("id")
	updated, err := h.packageService.UpdatePaymentStatus(c.Request.Context(), id, req.PaymentStatus)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}
	if !updated {
		respondError(c, http.StatusBadRequest, "UPDATE_FAILED", "Failed to update payment status", nil)
		return
	}
	respondOK(c, "Payment status updated successfully", gin.H{
		"subscription_id": id,
		"payment_status":  req.PaymentStatus,
	})
}
