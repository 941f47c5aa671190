package app

import (
	"context"
	"errors"

	"github.com/eurekapx/orderdesk/adapters/metrics"
	"github.com/eurekapx/orderdesk/domain/order"
	"github.com/rs/zerolog"
)

// SettleResult reports what a settlement request found.
type SettleResult struct {
	Found       bool
	AlreadyPaid bool
	Order       order.Order
}

// SettlementService marks orders paid on operator request.
type SettlementService struct {
	ledger   *LedgerService
	notifier Notifier
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewSettlementService creates a settlement service. notifier and m may be nil.
func NewSettlementService(ledger *LedgerService, notifier Notifier, m *metrics.Collector, logger zerolog.Logger) *SettlementService {
	return &SettlementService{
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// Settle marks an installment of an order paid.
// An unknown reference is reported with Found=false and no error; an order
// that is already paid is reported with AlreadyPaid=true and no error.
// An out of range installment returns order.ErrInvalidInstallment.
func (s *SettlementService) Settle(ctx context.Context, reference string, installment int) (SettleResult, error) {
	o, err := s.ledger.MarkPaid(ctx, reference, installment)
	switch {
	case err == nil:
	case errors.Is(err, order.ErrOrderNotFound):
		s.metrics.Settlement("not_found")
		s.logger.Warn().Str("reference", reference).Msg("settlement for unknown order")
		return SettleResult{Found: false}, nil
	case errors.Is(err, order.ErrAlreadyPaid):
		s.metrics.Settlement("already_paid")
		s.logger.Info().Str("reference", reference).Msg("order already paid")
		return SettleResult{Found: true, AlreadyPaid: true, Order: o}, nil
	case errors.Is(err, order.ErrInvalidInstallment):
		s.metrics.Settlement("invalid")
		return SettleResult{}, err
	default:
		s.metrics.Settlement("error")
		s.logger.Error().Err(err).Str("reference", reference).Msg("failed to settle order")
		return SettleResult{}, err
	}

	s.metrics.Settlement("settled")
	if s.notifier != nil {
		s.notifier.Notify()
	}
	s.logger.Info().
		Str("reference", reference).
		Int("installment", installment).
		Msg("order marked paid")

	return SettleResult{Found: true, Order: o}, nil
}
