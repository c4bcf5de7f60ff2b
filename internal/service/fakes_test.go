package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/elibrary/internal/apperror"
	"github.com/sakif/elibrary/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// Hand-written in-memory implementations of the repository interfaces. Each
// one has an err field; set it to simulate a storage failure.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow returns a clock stuck at the given date.
func fixedNow(year int, month time.Month, day int) func() time.Time {
	return func() time.Time { return time.Date(year, month, day, 10, 0, 0, 0, time.UTC) }
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	err    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("username", "Username already exists")
		}
		if existing.Email == u.Email {
			return apperror.Conflict("email", "Email already exists")
		}
	}
	f.nextID++
	u.ID = f.nextID
	u.CreatedAt = time.Now()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeUserRepo) find(match func(*model.User) bool, key any) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.ID == id }, id)
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Username == username }, username)
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	return f.find(func(u *model.User) bool { return u.Email == email }, email)
}

func (f *fakeUserRepo) ListUsers(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []model.User{}
	for id := int64(1); id <= f.nextID; id++ {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Authenticate(_ context.Context, username string, at time.Time, check func(string) error) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, u := range f.users {
		if u.Username != username {
			continue
		}
		if err := check(u.PasswordHash); err != nil {
			return nil, err
		}
		before := *u
		stamp := at
		u.LastLogin = &stamp
		return &before, nil
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, id int64, patch model.UserPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	for _, other := range f.users {
		if other.ID == id {
			continue
		}
		if patch.Username != nil && other.Username == *patch.Username {
			return apperror.Conflict("username", "Username already exists")
		}
		if patch.Email != nil && other.Email == *patch.Email {
			return apperror.Conflict("email", "Email already exists")
		}
	}
	if patch.Username != nil {
		u.Username = *patch.Username
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	return nil
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if _, ok := f.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(f.users, id)
	return nil
}

type fakeBookRepo struct {
	books   map[int64]*model.Book
	nextID  int64
	err     error
	patched model.BookPatch
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[int64]*model.Book)}
}

func (f *fakeBookRepo) ListBooks(_ context.Context) ([]model.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Book{}
	for id := int64(1); id <= f.nextID; id++ {
		if b, ok := f.books[id]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBookRepo) GetBook(_ context.Context, id int64) (*model.Book, error) {
	b, ok := f.books[id]
	if !ok {
		return nil, apperror.NotFound("book", id)
	}
	copied := *b
	return &copied, nil
}

func (f *fakeBookRepo) CreateBook(_ context.Context, b *model.Book) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	b.ID = f.nextID
	b.Status = model.BookAvailable
	b.BorrowedBy = model.NoBorrower
	stored := *b
	f.books[b.ID] = &stored
	return nil
}

func (f *fakeBookRepo) UpdateBook(_ context.Context, id int64, patch model.BookPatch) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.books[id]; !ok {
		return apperror.NotFound("book", id)
	}
	f.patched = patch
	if patch.Title != nil {
		f.books[id].Title = *patch.Title
	}
	return nil
}

func (f *fakeBookRepo) DeleteBook(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.books[id]; !ok {
		return apperror.NotFound("book", id)
	}
	delete(f.books, id)
	return nil
}

// fakeBorrowRepo keeps one holder per book, which is all the service needs.
type fakeBorrowRepo struct {
	holders     map[int64]int64 // bookID → userID
	known       map[int64]bool  // books that exist
	records     []model.BorrowRecord
	err         error
	overdueDay  string
	overdueHits int64
}

func newFakeBorrowRepo(bookIDs ...int64) *fakeBorrowRepo {
	f := &fakeBorrowRepo{holders: make(map[int64]int64), known: make(map[int64]bool)}
	for _, id := range bookIDs {
		f.known[id] = true
	}
	return f
}

func (f *fakeBorrowRepo) Borrow(_ context.Context, bookID, userID int64, borrowedDate, dueDate string) (*model.BorrowRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !f.known[bookID] {
		return nil, apperror.NotFound("book", bookID)
	}
	if _, out := f.holders[bookID]; out {
		return nil, apperror.NotAvailable("Book not available")
	}
	f.holders[bookID] = userID
	rec := model.BorrowRecord{
		ID:           int64(len(f.records) + 1),
		UserID:       userID,
		BookID:       bookID,
		BorrowedDate: borrowedDate,
		DueDate:      dueDate,
		Status:       model.BorrowActive,
	}
	f.records = append(f.records, rec)
	return &rec, nil
}

func (f *fakeBorrowRepo) Return(_ context.Context, bookID, userID int64, returnedDate string) (*model.BorrowRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.records {
		r := &f.records[i]
		if r.BookID == bookID && r.UserID == userID && r.Open() {
			r.Status = model.BorrowReturned
			r.ReturnedDate = &returnedDate
			delete(f.holders, bookID)
			copied := *r
			return &copied, nil
		}
	}
	return nil, apperror.NotFoundMessage("No borrowing record found")
}

func (f *fakeBorrowRepo) ListBorrowHistory(_ context.Context, userID int64) ([]model.BorrowRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.BorrowRecord{}
	for _, r := range f.records {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeBorrowRepo) MarkOverdue(_ context.Context, today string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.overdueDay = today
	return f.overdueHits, nil
}

type reactionKey struct {
	kind   model.ReactionKind
	userID int64
	bookID int64
}

type fakeReactionRepo struct {
	pairs map[reactionKey]bool
	books map[int64]model.Book
	err   error
}

func newFakeReactionRepo(books ...model.Book) *fakeReactionRepo {
	f := &fakeReactionRepo{pairs: make(map[reactionKey]bool), books: make(map[int64]model.Book)}
	for _, b := range books {
		f.books[b.ID] = b
	}
	return f
}

func (f *fakeReactionRepo) AddReaction(_ context.Context, kind model.ReactionKind, userID, bookID int64) error {
	if f.err != nil {
		return f.err
	}
	if _, ok := f.books[bookID]; !ok {
		return apperror.NotFound("book", bookID)
	}
	f.pairs[reactionKey{kind, userID, bookID}] = true
	return nil
}

func (f *fakeReactionRepo) RemoveReaction(_ context.Context, kind model.ReactionKind, userID, bookID int64) error {
	if f.err != nil {
		return f.err
	}
	delete(f.pairs, reactionKey{kind, userID, bookID})
	return nil
}

func (f *fakeReactionRepo) ListFavorites(_ context.Context, userID int64) ([]model.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Book{}
	for k := range f.pairs {
		if k.kind == model.Favorite && k.userID == userID {
			out = append(out, f.books[k.bookID])
		}
	}
	return out, nil
}

// fakeRevocations is both the token service's RevocationList and the
// maintenance service's RevocationStore.
type fakeRevocations struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	purgeErr error
	cutoff   time.Time
}

func newFakeRevocations() *fakeRevocations {
	return &fakeRevocations{entries: make(map[string]time.Time)}
}

func (f *fakeRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[token]
	return ok, nil
}

func (f *fakeRevocations) Revoke(_ context.Context, token string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[token] = expiresAt
	return nil
}

func (f *fakeRevocations) PurgeRevoked(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.purgeErr != nil {
		return 0, f.purgeErr
	}
	f.cutoff = before
	var n int64
	for tok, exp := range f.entries {
		if exp.Before(before) {
			delete(f.entries, tok)
			n++
		}
	}
	return n, nil
}

// fakeRecorder counts metric calls as "kind/result".
type fakeRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{counts: make(map[string]int)}
}

func (r *fakeRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
}

func (r *fakeRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

func (r *fakeRecorder) RecordBorrow(result string) { r.inc("borrow/" + result) }
func (r *fakeRecorder) RecordReturn(result string) { r.inc("return/" + result) }
func (r *fakeRecorder) RecordLogin(result string)  { r.inc("login/" + result) }
func (r *fakeRecorder) RecordHTTPStatus(int)       {}
