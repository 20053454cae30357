package handler

import (
	"vendor-payout-ledger/internal/adapter/http/dto"
	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// VendorHandler receives payment-method and KYC updates from the verification service.
type VendorHandler struct {
	directory ports.VendorDirectoryService
}

// NewVendorHandler creates a new VendorHandler.
func NewVendorHandler(directory ports.VendorDirectoryService) *VendorHandler {
	return &VendorHandler{directory: directory}
}

// SyncPaymentMethod handles PUT /api/v1/admin/vendors/:vendor_id/payment-methods/:method_id.
func (h *VendorHandler) SyncPaymentMethod(c *gin.Context) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	methodID, ok := pathUUID(c, "method_id")
	if !ok {
		return
	}
	var req dto.PaymentMethodSyncRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	m, err := h.directory.SyncPaymentMethod(c.Request.Context(), domain.PaymentMethod{
		ID:                 methodID,
		VendorID:           vendorID,
		MethodType:         domain.PaymentMethodType(req.MethodType),
		DisplayName:        req.DisplayName,
		VerificationStatus: domain.VerificationStatus(req.VerificationStatus),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// GetPaymentMethod handles GET /api/v1/admin/vendors/:vendor_id/payment-methods/:method_id.
func (h *VendorHandler) GetPaymentMethod(c *gin.Context) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	methodID, ok := pathUUID(c, "method_id")
	if !ok {
		return
	}
	m, err := h.directory.GetPaymentMethod(c.Request.Context(), vendorID, methodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// SetKYCStatus handles PUT /api/v1/admin/vendors/:vendor_id/kyc.
func (h *VendorHandler) SetKYCStatus(c *gin.Context) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	var req dto.KYCStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.directory.SetKYCStatus(c.Request.Context(), vendorID, *req.Verified); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"vendor_id": vendorID, "kyc_verified": *req.Verified})
}
