package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"vendor-payout-ledger/internal/core/domain"
	"vendor-payout-ledger/internal/core/ports"
	"vendor-payout-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type vendorDirectoryService struct {
	methods ports.PaymentMethodRepository
	kyc     ports.VendorKYCRepository
	log     zerolog.Logger
	now     func() time.Time
}

// NewVendorDirectoryService creates the sync target for the verification service.
func NewVendorDirectoryService(methods ports.PaymentMethodRepository, kyc ports.VendorKYCRepository, log zerolog.Logger) ports.VendorDirectoryService {
	return &vendorDirectoryService{
		methods: methods,
		kyc:     kyc,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SyncPaymentMethod stores the latest verification state of a payout destination.
// A destination never changes owner.
func (s *vendorDirectoryService) SyncPaymentMethod(ctx context.Context, m domain.PaymentMethod) (*domain.PaymentMethod, error) {
	if m.ID == uuid.Nil || m.VendorID == uuid.Nil {
		return nil, apperror.Validation("payment method and vendor ids are required")
	}
	if !m.MethodType.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unsupported payment method type %q", m.MethodType))
	}
	if !m.VerificationStatus.IsValid() {
		return nil, apperror.Validation(fmt.Sprintf("unknown verification status %q", m.VerificationStatus))
	}
	m.DisplayName = strings.TrimSpace(m.DisplayName)

	existing, err := s.methods.GetByID(ctx, m.ID)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get payment method: %w", err))
	}
	if existing != nil {
		if !existing.BelongsTo(m.VendorID) {
			return nil, apperror.Validation("payment method belongs to another vendor")
		}
		m.CreatedAt = existing.CreatedAt
	} else {
		m.CreatedAt = s.now()
	}

	if err := s.methods.Upsert(ctx, &m); err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("upsert payment method: %w", err))
	}

	s.log.Info().
		Str("vendor_id", m.VendorID.String()).
		Str("payment_method_id", m.ID.String()).
		Str("verification_status", string(m.VerificationStatus)).
		Msg("payment method synced")
	return &m, nil
}

// GetPaymentMethod returns the vendor's destination. Another vendor's method reads as not found.
func (s *vendorDirectoryService) GetPaymentMethod(ctx context.Context, vendorID, id uuid.UUID) (*domain.PaymentMethod, error) {
	m, err := s.methods.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.StorageFailure(fmt.Errorf("get payment method: %w", err))
	}
	if m == nil || !m.BelongsTo(vendorID) {
		return nil, apperror.ErrNotFound("Payment method")
	}
	return m, nil
}

func (s *vendorDirectoryService) SetKYCStatus(ctx context.Context, vendorID uuid.UUID, verified bool) error {
	if vendorID == uuid.Nil {
		return apperror.Validation("vendor id is required")
	}
	if err := s.kyc.SetVerified(ctx, vendorID, verified, s.now()); err != nil {
		return apperror.StorageFailure(fmt.Errorf("set kyc status: %w", err))
	}
	s.log.Info().Str("vendor_id", vendorID.String()).Bool("kyc_verified", verified).Msg("vendor kyc synced")
	return nil
}
