// Package service contains the business rules of the library.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this pkg)  → validates input, enforces who may do what
//	Repository (SQL)    → reads/writes rows, owns transactions
//
// Services speak in domain terms only. They take primitives and model
// types, return model types and apperror kinds, and never see an
// *http.Request. The same methods back the HTTP API and the elibrary CLI
// (create-admin and maintenance call straight into this package).
//
// Every service receives its repositories as interfaces, so the tests in
// this package run against small in-memory fakes instead of a database.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/repository"
)

// Messages shared by several services. Clients match on some of them, so
// they are kept verbatim.
const (
	msgMissingParameters = "Missing parameters"
	msgNothingChanged    = "Nothing changed"
)

// BookService manages the catalog. Availability (status, borrowed_by) is
// not editable here; only BorrowService moves a book in and out.
type BookService struct {
	books  repository.BookRepository
	logger *slog.Logger
}

func NewBookService(books repository.BookRepository, logger *slog.Logger) *BookService {
	return &BookService{books: books, logger: logger}
}

func (s *BookService) List(ctx context.Context) ([]model.Book, error) {
	books, err := s.books.ListBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	return books, nil
}

// Add validates and stores a new book. Title and authors are required; the
// remaining bibliographic fields may be empty.
func (s *BookService) Add(ctx context.Context, b *model.Book) error {
	b.Title = strings.TrimSpace(b.Title)
	b.Authors = strings.TrimSpace(b.Authors)
	if b.Title == "" || b.Authors == "" {
		return apperror.ValidationFailed("title", "Title and authors are required")
	}
	b.Publishers = strings.TrimSpace(b.Publishers)
	b.Date = strings.TrimSpace(b.Date)
	b.ISBN = strings.TrimSpace(b.ISBN)

	if err := s.books.CreateBook(ctx, b); err != nil {
		return fmt.Errorf("adding book: %w", err)
	}

	s.logger.Info("book added",
		slog.Int64("bookID", b.ID),
		slog.String("title", b.Title),
	)
	return nil
}

// Update applies a patch over the fixed bibliographic field set. A patch that
// names no field is rejected, and so is one that blanks a required field.
func (s *BookService) Update(ctx context.Context, id int64, patch model.BookPatch) error {
	if patch.Empty() {
		return apperror.ValidationFailed("", msgNothingChanged)
	}
	if blank(patch.Title) {
		return apperror.ValidationFailed("title", "Title must not be empty")
	}
	if blank(patch.Authors) {
		return apperror.ValidationFailed("authors", "Authors must not be empty")
	}

	if err := s.books.UpdateBook(ctx, id, patch); err != nil {
		return fmt.Errorf("updating book %d: %w", id, err)
	}
	s.logger.Info("book updated", slog.Int64("bookID", id))
	return nil
}

func (s *BookService) Delete(ctx context.Context, id int64) error {
	if err := s.books.DeleteBook(ctx, id); err != nil {
		return fmt.Errorf("deleting book %d: %w", id, err)
	}
	s.logger.Info("book deleted", slog.Int64("bookID", id))
	return nil
}

// blank reports whether an optional field is present but empty.
func blank(p *string) bool {
	return p != nil && strings.TrimSpace(*p) == ""
}
