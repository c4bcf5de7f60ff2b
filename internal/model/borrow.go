package model

import "time"

// BorrowStatus is the lifecycle state of a BorrowRecord.
type BorrowStatus string

const (
	BorrowActive   BorrowStatus = "borrowed"
	BorrowReturned BorrowStatus = "returned"
	BorrowOverdue  BorrowStatus = "overdue"
)

// DateLayout is the calendar-date format used for every date column.
const DateLayout = "2006-01-02"

// BorrowRecord is one row of a user's borrowing history. A record in the
// borrowed or overdue state is the single active loan for its book.
type BorrowRecord struct {
	ID           int64        `json:"id"            db:"id"`
	UserID       int64        `json:"user_id"       db:"user_id"`
	BookID       int64        `json:"book_id"       db:"book_id"`
	BorrowedDate string       `json:"borrowed_date" db:"borrowed_date"`
	DueDate      string       `json:"due_date"      db:"due_date"`
	ReturnedDate *string      `json:"returned_date" db:"returned_date"`
	Status       BorrowStatus `json:"status"        db:"status"`
	CreatedAt    time.Time    `json:"created_at"    db:"created_at"`
}

// Open reports whether the record still holds its book.
func (r BorrowRecord) Open() bool {
	return r.Status == BorrowActive || r.Status == BorrowOverdue
}

// ReactionKind selects between the two user-book relations.
type ReactionKind int

const (
	Like ReactionKind = iota
	Favorite
)

func (k ReactionKind) String() string {
	if k == Favorite {
		return "favorite"
	}
	return "like"
}
