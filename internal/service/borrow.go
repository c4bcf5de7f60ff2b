package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/metrics"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// BorrowService runs the lending state machine:
//
//	AVAILABLE --Borrow--> BORROWED --Return--> AVAILABLE
//
// The repository makes each transition one transaction; this layer only
// validates input, stamps today's date, and counts outcomes.
type BorrowService struct {
	borrows repository.BorrowRepository
	metrics metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time
}

func NewBorrowService(borrows repository.BorrowRepository, rec metrics.Recorder, logger *slog.Logger) *BorrowService {
	return &BorrowService{borrows: borrows, metrics: rec, logger: logger, now: time.Now}
}

// Borrow lends bookID to userID until dueDate (YYYY-MM-DD). A due date in
// the past is accepted; the record is simply overdue at the next sweep.
func (s *BorrowService) Borrow(ctx context.Context, userID, bookID int64, dueDate string) (*model.BorrowRecord, error) {
	dueDate = strings.TrimSpace(dueDate)
	if bookID <= 0 || dueDate == "" {
		s.metrics.RecordBorrow(metrics.ResultRejected)
		return nil, apperror.ValidationFailed("", msgMissingParameters)
	}
	if _, err := time.Parse(model.DateLayout, dueDate); err != nil {
		s.metrics.RecordBorrow(metrics.ResultRejected)
		return nil, apperror.ValidationFailed("due_date", "due_date must be a date in YYYY-MM-DD format")
	}

	rec, err := s.borrows.Borrow(ctx, bookID, userID, s.today(), dueDate)
	s.metrics.RecordBorrow(outcome(err))
	if err != nil {
		return nil, fmt.Errorf("borrowing book %d: %w", bookID, err)
	}

	s.logger.Info("book borrowed",
		slog.Int64("bookID", bookID),
		slog.Int64("userID", userID),
		slog.String("dueDate", dueDate),
	)
	return rec, nil
}

// Return closes userID's open loan of bookID.
func (s *BorrowService) Return(ctx context.Context, userID, bookID int64) (*model.BorrowRecord, error) {
	if bookID <= 0 {
		s.metrics.RecordReturn(metrics.ResultRejected)
		return nil, apperror.ValidationFailed("book_id", msgMissingParameters)
	}

	rec, err := s.borrows.Return(ctx, bookID, userID, s.today())
	s.metrics.RecordReturn(outcome(err))
	if err != nil {
		return nil, fmt.Errorf("returning book %d: %w", bookID, err)
	}

	s.logger.Info("book returned",
		slog.Int64("bookID", bookID),
		slog.Int64("userID", userID),
	)
	return rec, nil
}

func (s *BorrowService) History(ctx context.Context, userID int64) ([]model.BorrowRecord, error) {
	records, err := s.borrows.ListBorrowHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing borrow history of user %d: %w", userID, err)
	}
	return records, nil
}

func (s *BorrowService) today() string {
	return s.now().UTC().Format(model.DateLayout)
}

// outcome buckets an error into a metrics result label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, apperror.ErrNotAvailable),
		errors.Is(err, apperror.ErrNotFound),
		errors.Is(err, apperror.ErrValidation):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
