package handler

import (
	"strings"

	"vendor-payout-ledger/internal/adapter/http/dto"
	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/apperror"
	"vendor-payout-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey lets a vendor retry payout creation safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKeyLen = 128

// PayoutHandler serves the vendor and admin payout endpoints.
type PayoutHandler struct {
	payouts ports.PayoutService
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(payouts ports.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

// Create handles POST /api/v1/payouts.
func (h *PayoutHandler) Create(c *gin.Context) {
	vendorID, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.CreatePayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(key) > maxIdempotencyKeyLen {
		response.Error(c, apperror.Validation("Idempotency-Key too long"))
		return
	}

	payout, err := h.payouts.CreateRequest(c.Request.Context(), ports.CreatePayoutRequest{
		VendorID:        vendorID,
		Amount:          req.Amount,
		PaymentMethodID: uuid.MustParse(req.PaymentMethodID),
		IdempotencyKey:  key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payout)
}

// List handles GET /api/v1/payouts for the calling vendor.
func (h *PayoutHandler) List(c *gin.Context) {
	vendorID, ok := callerID(c)
	if !ok {
		return
	}
	var q dto.PayoutListQuery
	if !bindQuery(c, &q) {
		return
	}
	q.VendorID = vendorID.String()
	h.list(c, q)
}

// Get handles GET /api/v1/payouts/:id. Another vendor's payout reads as not found.
func (h *PayoutHandler) Get(c *gin.Context) {
	vendorID, ok := callerID(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	payout, err := h.payouts.GetPayout(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if payout.VendorID != vendorID {
		response.Error(c, apperror.ErrNotFound("Payout request"))
		return
	}
	response.OK(c, payout)
}

// AdminList handles GET /api/v1/admin/payouts.
func (h *PayoutHandler) AdminList(c *gin.Context) {
	var q dto.PayoutListQuery
	if !bindQuery(c, &q) {
		return
	}
	h.list(c, q)
}

// AdminGet handles GET /api/v1/admin/payouts/:id.
func (h *PayoutHandler) AdminGet(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	payout, err := h.payouts.GetPayout(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// AuditTrail handles GET /api/v1/admin/payouts/:id/audit.
func (h *PayoutHandler) AuditTrail(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	trail, err := h.payouts.GetAuditTrail(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, trail)
}

// Approve handles POST /api/v1/admin/payouts/:id/approve.
func (h *PayoutHandler) Approve(c *gin.Context) {
	adminID, id, ok := adminAndPayout(c)
	if !ok {
		return
	}
	var req dto.ApprovePayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payouts.Approve(c.Request.Context(), ports.ApprovePayoutRequest{
		PayoutID:        id,
		AdminID:         adminID,
		ApprovedAmount:  req.ApprovedAmount,
		OtherDeductions: req.OtherDeductions,
		Notes:           req.Notes,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// Reject handles POST /api/v1/admin/payouts/:id/reject.
func (h *PayoutHandler) Reject(c *gin.Context) {
	adminID, id, ok := adminAndPayout(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payouts.Reject(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// MarkProcessing handles POST /api/v1/admin/payouts/:id/processing.
func (h *PayoutHandler) MarkProcessing(c *gin.Context) {
	adminID, id, ok := adminAndPayout(c)
	if !ok {
		return
	}
	payout, err := h.payouts.MarkProcessing(c.Request.Context(), id, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// MarkPaid handles POST /api/v1/admin/payouts/:id/paid.
func (h *PayoutHandler) MarkPaid(c *gin.Context) {
	adminID, id, ok := adminAndPayout(c)
	if !ok {
		return
	}
	var req dto.MarkPaidRequest
	if !bindJSON(c, &req) {
		return
	}

	payout, err := h.payouts.MarkPaid(c.Request.Context(), id, adminID, req.TransactionID, req.ReferenceNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

// MarkFailed handles POST /api/v1/admin/payouts/:id/failed.
func (h *PayoutHandler) MarkFailed(c *gin.Context) {
	adminID, id, ok := adminAndPayout(c)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	payout, err := h.payouts.MarkFailed(c.Request.Context(), id, adminID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payout)
}

func (h *PayoutHandler) list(c *gin.Context, q dto.PayoutListQuery) {
	page, pageSize := pageOrDefault(q.Page, q.PageSize)
	filter := domain.PayoutFilter{Page: page, PageSize: pageSize}
	if q.VendorID != "" {
		id := uuid.MustParse(q.VendorID)
		filter.VendorID = &id
	}
	if q.Status != "" {
		status := domain.PayoutStatus(q.Status)
		filter.Status = &status
	}

	items, total, err := h.payouts.ListPayouts(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, page, pageSize, total)
}

// adminAndPayout resolves the acting admin and the :id payout.
func adminAndPayout(c *gin.Context) (string, uuid.UUID, bool) {
	adminID, ok := callerID(c)
	if !ok {
		return "", uuid.Nil, false
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return "", uuid.Nil, false
	}
	return adminID.String(), id, true
}
