package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// MaintenanceService holds the housekeeping jobs. Nothing schedules them;
// they run when an operator calls `elibrary maintenance`.
type MaintenanceService struct {
	revocations repository.RevocationStore
	borrows     repository.BorrowRepository
	logger      *slog.Logger
	now         func() time.Time
}

func NewMaintenanceService(revocations repository.RevocationStore, borrows repository.BorrowRepository, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{revocations: revocations, borrows: borrows, logger: logger, now: time.Now}
}

// Report summarises one maintenance run.
type Report struct {
	PurgedTokens  int64
	OverdueMarked int64
}

// PurgeRevoked drops revocation entries for tokens that have expired.
func (s *MaintenanceService) PurgeRevoked(ctx context.Context) (int64, error) {
	n, err := s.revocations.PurgeRevoked(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purging revoked tokens: %w", err)
	}
	return n, nil
}

// SweepOverdue marks loans past their due date as overdue.
func (s *MaintenanceService) SweepOverdue(ctx context.Context) (int64, error) {
	today := s.now().UTC().Format(model.DateLayout)
	n, err := s.borrows.MarkOverdue(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("sweeping overdue loans: %w", err)
	}
	return n, nil
}

// Run performs both jobs. The sweep still runs when the purge fails; the
// returned error joins both failures.
func (s *MaintenanceService) Run(ctx context.Context) (*Report, error) {
	var report Report
	var errs []error

	purged, err := s.PurgeRevoked(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	report.PurgedTokens = purged

	marked, err := s.SweepOverdue(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	report.OverdueMarked = marked

	s.logger.Info("maintenance finished",
		slog.Int64("purgedTokens", report.PurgedTokens),
		slog.Int64("overdueMarked", report.OverdueMarked),
	)
	return &report, errors.Join(errs...)
}
