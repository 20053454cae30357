package handler

import (
	"context"

	"vendor-payout-ledger/internal/adapter/http/dto"
	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler serves wallet balances and ledger history.
type WalletHandler struct {
	ledger ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance handles GET /api/v1/wallet/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	vendorID, ok := callerID(c)
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balance)
}

// ListTransactions handles GET /api/v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	vendorID, ok := callerID(c)
	if !ok {
		return
	}
	var q dto.PageQuery
	if !bindQuery(c, &q) {
		return
	}
	page, pageSize := pageOrDefault(q.Page, q.PageSize)

	items, total, err := h.ledger.ListTransactions(c.Request.Context(), vendorID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paged(c, items, page, pageSize, total)
}

// VendorBalance handles GET /api/v1/admin/wallets/:vendor_id.
func (h *WalletHandler) VendorBalance(c *gin.Context) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	balance, err := h.ledger.GetBalance(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balance)
}

// Credit handles POST /api/v1/admin/wallets/:vendor_id/credit.
func (h *WalletHandler) Credit(c *gin.Context) {
	h.post(c, h.ledger.Credit)
}

// Debit handles POST /api/v1/admin/wallets/:vendor_id/debit.
func (h *WalletHandler) Debit(c *gin.Context) {
	h.post(c, h.ledger.Debit)
}

// post binds a manual ledger entry and applies it with fn.
func (h *WalletHandler) post(c *gin.Context, fn func(context.Context, ports.LedgerEntryRequest) (*domain.WalletTransaction, error)) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	var req dto.LedgerEntryRequest
	if !bindJSON(c, &req) {
		return
	}
	dto.SanitizeStruct(&req)

	entry := ports.LedgerEntryRequest{
		VendorID:      vendorID,
		Amount:        req.Amount,
		ReferenceType: domain.ReferenceType(req.ReferenceType),
		Description:   req.Description,
	}
	if req.ReferenceID != "" {
		entry.ReferenceID = &req.ReferenceID
	}

	tx, err := fn(c.Request.Context(), entry)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// Reconcile handles GET /api/v1/admin/wallets/:vendor_id/reconcile.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	vendorID, ok := pathUUID(c, "vendor_id")
	if !ok {
		return
	}
	report, err := h.ledger.Reconcile(c.Request.Context(), vendorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, report)
}
