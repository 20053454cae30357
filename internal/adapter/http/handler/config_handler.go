package handler

import (
	"vendor-payout-ledger/internal/adapter/http/dto"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ConfigHandler serves the versioned payout configuration.
type ConfigHandler struct {
	configs ports.ConfigurationService
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(configs ports.ConfigurationService) *ConfigHandler {
	return &ConfigHandler{configs: configs}
}

// Get handles GET /api/v1/admin/payout-config.
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.GetActiveConfiguration(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cfg)
}

// Update handles PUT /api/v1/admin/payout-config. Each update activates a new version.
func (h *ConfigHandler) Update(c *gin.Context) {
	adminID, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.ConfigurationRequest
	if !bindJSON(c, &req) {
		return
	}

	cfg, err := h.configs.UpdateConfiguration(c.Request.Context(), adminID.String(), ports.ConfigurationValues{
		MinPayoutAmount:          req.MinPayoutAmount,
		MaxPayoutAmount:          req.MaxPayoutAmount,
		DailyPayoutLimit:         req.DailyPayoutLimit,
		MonthlyPayoutLimit:       req.MonthlyPayoutLimit,
		ProcessingFeePercentage:  req.ProcessingFeePercentage,
		ProcessingFeeFixed:       req.ProcessingFeeFixed,
		TDSPercentage:            req.TDSPercentage,
		AutoApprovalLimit:        req.AutoApprovalLimit,
		KYCRequiredForPayouts:    req.KYCRequiredForPayouts,
		BankVerificationRequired: req.BankVerificationRequired,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cfg)
}

// History handles GET /api/v1/admin/payout-config/history.
func (h *ConfigHandler) History(c *gin.Context) {
	var q dto.HistoryQuery
	if !bindQuery(c, &q) {
		return
	}
	items, err := h.configs.ListConfigurationHistory(c.Request.Context(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, items)
}
