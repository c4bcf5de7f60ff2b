package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/elibrary/internal/model"
	"github.com/sakif/elibrary/internal/service"
)

// BookHandler serves the catalog and the lending workflow.
type BookHandler struct {
	books   *service.BookService
	borrows *service.BorrowService
	logger  *slog.Logger
}

func NewBookHandler(books *service.BookService, borrows *service.BorrowService, logger *slog.Logger) *BookHandler {
	return &BookHandler{books: books, borrows: borrows, logger: logger}
}

// HandleList returns the whole catalog. HTTP: GET /books/all (public).
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

type bookRequest struct {
	Title      string `json:"title"`
	Authors    string `json:"authors"`
	Publishers string `json:"publishers"`
	Date       string `json:"date"`
	ISBN       string `json:"isbn"`
}

// HandleAdd creates a book. HTTP: POST /books/add (admin) → 201.
func (h *BookHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	b := &model.Book{
		Title:      req.Title,
		Authors:    req.Authors,
		Publishers: req.Publishers,
		Date:       req.Date,
		ISBN:       req.ISBN,
	}
	if err := h.books.Add(r.Context(), b); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "book_id": b.ID})
}

// HandleUpdate patches a book's bibliographic fields.
// HTTP: PUT /books/update/{book_id} (admin).
//
// Decoding straight into model.BookPatch means an unknown key such as
// "status" is simply ignored: availability cannot be edited this way.
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "book_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var patch model.BookPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.books.Update(r.Context(), id, patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Book updated successfully"})
}

// HandleDelete removes a book. HTTP: DELETE /books/delete/{book_id} (admin).
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "book_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.books.Delete(r.Context(), id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// BorrowResponse is the body of a successful borrow.
type BorrowResponse struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	BorrowRecord *model.BorrowRecord `json:"borrow_record"`
}

// HandleBorrow lends a book to the caller. HTTP: POST /books/borrow (bearer)
// with {book_id, due_date}.
func (h *BookHandler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	var req struct {
		BookID  flexInt `json:"book_id"`
		DueDate string  `json:"due_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rec, err := h.borrows.Borrow(r.Context(), caller.UserID, int64(req.BookID), req.DueDate)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BorrowResponse{
		Success:      true,
		Message:      "Book borrowed successfully",
		BorrowRecord: rec,
	})
}

// HandleReturn closes the caller's loan. HTTP: PUT /books/return/{book_id}.
func (h *BookHandler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	bookID, err := pathID(r, "book_id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if _, err := h.borrows.Return(r.Context(), caller.UserID, bookID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Book returned successfully"})
}

// HandleHistory lists the caller's loans. HTTP: GET /borrowing_history.
func (h *BookHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	caller, ok := identity(w, r, h.logger)
	if !ok {
		return
	}
	records, err := h.borrows.History(r.Context(), caller.UserID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
