package model

// BookStatus is the availability flag stored on a book row.
type BookStatus int

const (
	BookAvailable BookStatus = 0
	BookBorrowed  BookStatus = 1
)

// NoBorrower is the borrowed_by sentinel for a book nobody holds.
const NoBorrower int64 = -1

type Book struct {
	ID         int64      `json:"book_id"     db:"book_id"`
	Title      string     `json:"title"       db:"title"`
	Authors    string     `json:"authors"     db:"authors"`
	Publishers string     `json:"publishers"  db:"publishers"`
	Date       string     `json:"date"        db:"date"`
	ISBN       string     `json:"isbn"        db:"isbn"`
	Status     BookStatus `json:"status"      db:"status"`
	BorrowedBy int64      `json:"borrowed_by" db:"borrowed_by"`
}

// BookPatch is the fixed set of bibliographic fields an admin may edit.
// Status and BorrowedBy are deliberately absent: only a borrow or a return
// moves them.
type BookPatch struct {
	Title      *string `json:"title"`
	Authors    *string `json:"authors"`
	Publishers *string `json:"publishers"`
	Date       *string `json:"date"`
	ISBN       *string `json:"isbn"`
}

func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Authors == nil && p.Publishers == nil && p.Date == nil && p.ISBN == nil
}
