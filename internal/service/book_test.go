package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/repository"
)

// =========================================================================
// MOCK REPOSITORY
// =========================================================================
//
// mockBookRepo keeps books in a slice so List and Search return them in
// insertion order, like the real backends. failWith forces every call to
// fail so the error paths can be exercised without a broken database.

type mockBookRepo struct {
	books    []model.Book
	nextID   int
	failWith error
}

func newMockRepo() *mockBookRepo {
	return &mockBookRepo{}
}

func (m *mockBookRepo) index(id string) int {
	for i, b := range m.books {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *mockBookRepo) Create(_ context.Context, book *model.Book) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.nextID++
	book.ID = fmt.Sprintf("mock-%03d", m.nextID)
	m.books = append(m.books, *book)
	return nil
}

func (m *mockBookRepo) GetByID(_ context.Context, id string) (*model.Book, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	i := m.index(id)
	if i < 0 {
		return nil, apperror.NotFound("book", id)
	}
	result := m.books[i]
	return &result, nil
}

func (m *mockBookRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Book, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	if opts.Offset >= len(m.books) {
		return []model.Book{}, nil
	}
	result := append([]model.Book(nil), m.books[opts.Offset:]...)
	if opts.Limit > 0 && opts.Limit < len(result) {
		result = result[:opts.Limit]
	}
	return result, nil
}

func (m *mockBookRepo) Count(_ context.Context) (int, error) {
	if m.failWith != nil {
		return 0, m.failWith
	}
	return len(m.books), nil
}

func (m *mockBookRepo) Search(_ context.Context, query string) ([]model.Book, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	q := strings.ToLower(query)
	result := []model.Book{}
	for _, b := range m.books {
		if strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q) ||
			strings.Contains(strings.ToLower(b.Genre), q) ||
			(b.Year != nil && strings.Contains(b.YearString(), q)) {
			result = append(result, b)
		}
	}
	return result, nil
}

func (m *mockBookRepo) Update(_ context.Context, book *model.Book) error {
	if m.failWith != nil {
		return m.failWith
	}
	i := m.index(book.ID)
	if i < 0 {
		return apperror.NotFound("book", book.ID)
	}
	m.books[i] = *book
	return nil
}

func (m *mockBookRepo) Delete(_ context.Context, id string) error {
	if m.failWith != nil {
		return m.failWith
	}
	i := m.index(id)
	if i < 0 {
		return apperror.NotFound("book", id)
	}
	m.books = append(m.books[:i], m.books[i+1:]...)
	return nil
}

func (m *mockBookRepo) Ping(_ context.Context) error {
	return m.failWith
}

// =========================================================================
// TEST HELPER
// =========================================================================

func newTestService(t *testing.T) (*BookService, *mockBookRepo) {
	t.Helper()
	repo := newMockRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBookService(repo, logger), repo
}

func mustCreate(t *testing.T, svc *BookService, in model.BookInput) *model.Book {
	t.Helper()
	book, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("setup: Create(%+v) error = %v", in, err)
	}
	return book
}

// =========================================================================
// PAGINATION
// =========================================================================

func TestNumberOfPages(t *testing.T) {
	tests := []struct{ n, want int }{
		{0, 0}, {1, 1}, {7, 1}, {8, 1}, {9, 2}, {16, 2}, {17, 3}, {-3, 0},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.n), func(t *testing.T) {
			if got := NumberOfPages(tt.n); got != tt.want {
				t.Errorf("NumberOfPages(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestNumberOfPagesProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(8)
	properties := gopter.NewProperties(parameters)

	properties.Property("pages hold every book and no empty trailing page", prop.ForAll(
		func(n int) bool {
			p := NumberOfPages(n)
			return p*PageSize >= n && (p-1)*PageSize < n
		},
		gen.IntRange(1, 100000),
	))

	properties.TestingRun(t)
}

func TestPage(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < 10; i++ {
		mustCreate(t, svc, model.BookInput{Title: fmt.Sprintf("Book %d", i), Author: "A"})
	}

	first, err := svc.Page(context.Background(), 1)
	if err != nil {
		t.Fatalf("Page(1) error = %v", err)
	}
	if len(first.Books) != PageSize {
		t.Errorf("Page(1) returned %d books, want %d", len(first.Books), PageSize)
	}
	if first.Pages != 2 || first.Total != 10 || first.Page != 1 {
		t.Errorf("Page(1) = pages %d total %d page %d, want 2/10/1", first.Pages, first.Total, first.Page)
	}
	if first.Books[0].Title != "Book 0" {
		t.Errorf("first book = %q, want insertion order", first.Books[0].Title)
	}

	second, err := svc.Page(context.Background(), 2)
	if err != nil {
		t.Fatalf("Page(2) error = %v", err)
	}
	if len(second.Books) != 2 || second.Books[0].Title != "Book 8" {
		t.Errorf("Page(2) = %d books starting %q, want 2 starting Book 8", len(second.Books), second.Books[0].Title)
	}
}

func TestPage_PastTheEndIsEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, model.BookInput{Title: "Only", Author: "One"})

	listing, err := svc.Page(context.Background(), 5)
	if err != nil {
		t.Fatalf("Page(5) error = %v", err)
	}
	if len(listing.Books) != 0 || listing.Pages != 1 {
		t.Errorf("Page(5) = %d books / %d pages, want 0 / 1", len(listing.Books), listing.Pages)
	}
}

func TestPage_InvalidNumbers(t *testing.T) {
	svc, _ := newTestService(t)

	for _, page := range []int{0, -1, -100} {
		_, err := svc.Page(context.Background(), page)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("Page(%d) error = %v, want ErrNotFound", page, err)
		}
	}
}

func TestPage_OffsetOverflow(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, model.BookInput{Title: "Dune", Author: "Herbert"})

	for _, page := range []int{MaxPage + 1, math.MaxInt/PageSize + 2, math.MaxInt} {
		listing, err := svc.Page(context.Background(), page)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("Page(%d) = %v, %v; want ErrNotFound", page, listing, err)
		}
	}

	listing, err := svc.Page(context.Background(), MaxPage)
	if err != nil {
		t.Fatalf("Page(MaxPage) error = %v", err)
	}
	if len(listing.Books) != 0 {
		t.Errorf("Page(MaxPage) returned %d books, want none", len(listing.Books))
	}
}

func TestPage_StorageFailure(t *testing.T) {
	svc, repo := newTestService(t)
	repo.failWith = errors.New("connection refused")

	_, err := svc.Page(context.Background(), 1)
	if err == nil || errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Page() error = %v, want an unhandled storage error", err)
	}
	if apperror.StatusCode(err) != 500 {
		t.Errorf("StatusCode = %d, want 500", apperror.StatusCode(err))
	}
}

// =========================================================================
// SEARCH
// =========================================================================

func TestSearch_GenreOnlyCaseInsensitive(t *testing.T) {
	svc, _ := newTestService(t)
	mustCreate(t, svc, model.BookInput{Title: "Dune", Author: "Herbert", Genre: "Space Opera"})
	mustCreate(t, svc, model.BookInput{Title: "Emma", Author: "Austen", Genre: "Romance"})
	mustCreate(t, svc, model.BookInput{Title: "Hyperion", Author: "Simmons", Genre: "space OPERA"})

	books, err := svc.Search(context.Background(), "Space opera")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(books) != 2 || books[0].Title != "Dune" || books[1].Title != "Hyperion" {
		t.Errorf("Search() = %+v, want Dune and Hyperion", books)
	}
}

func TestSearch_IsNotPaginated(t *testing.T) {
	svc, _ := newTestService(t)
	for i := 0; i < PageSize*2+1; i++ {
		mustCreate(t, svc, model.BookInput{Title: "Match", Author: "A"})
	}

	books, err := svc.Search(context.Background(), "match")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(books) != PageSize*2+1 {
		t.Errorf("Search() returned %d, want %d", len(books), PageSize*2+1)
	}
}

// =========================================================================
// CREATE
// =========================================================================

func TestCreate_Success(t *testing.T) {
	svc, _ := newTestService(t)

	book, err := svc.Create(context.Background(), model.BookInput{
		Title: "Dune", Author: "Herbert", Genre: "Sci-Fi", Year: "1965",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if book.ID == "" {
		t.Error("expected book to have an ID")
	}
	if book.Year == nil || *book.Year != 1965 {
		t.Errorf("Year = %v, want 1965", book.Year)
	}
}

func TestCreate_InvalidLeavesStorageUntouched(t *testing.T) {
	tests := []struct {
		name       string
		in         model.BookInput
		wantErrors int
	}{
		{"missing title", model.BookInput{Author: "Herbert"}, 1},
		{"missing author", model.BookInput{Title: "Dune"}, 1},
		{"missing both", model.BookInput{Genre: "Sci-Fi"}, 2},
		{"missing both and bad year", model.BookInput{Year: "65"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService(t)
			mustCreate(t, svc, model.BookInput{Title: "Existing", Author: "Someone"})

			book, err := svc.Create(context.Background(), tt.in)

			var verrs apperror.ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Create() error = %v, want ValidationErrors", err)
			}
			if len(verrs) != tt.wantErrors {
				t.Errorf("got %d field errors, want %d: %v", len(verrs), tt.wantErrors, verrs)
			}
			if book == nil || book.ID != "" {
				t.Errorf("candidate = %+v, want unsaved candidate", book)
			}
			if len(repo.books) != 1 {
				t.Errorf("repository holds %d books, want 1", len(repo.books))
			}
		})
	}
}

func TestCreate_StorageFailureIsNotValidation(t *testing.T) {
	svc, repo := newTestService(t)
	repo.failWith = errors.New("disk full")

	_, err := svc.Create(context.Background(), model.BookInput{Title: "Dune", Author: "Herbert"})
	if err == nil {
		t.Fatal("Create() should fail when storage fails")
	}
	if errors.Is(err, apperror.ErrValidation) {
		t.Errorf("storage failure reported as validation: %v", err)
	}
}

// TestCreateThenGetProperties: for any valid submission, fetching the created
// id yields the submitted values.
func TestCreateThenGetProperties(t *testing.T) {
	svc, _ := newTestService(t)

	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1984)
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	nonBlank := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })

	properties.Property("create then get round-trips", prop.ForAll(
		func(title, author, genre string, year int) bool {
			created, err := svc.Create(context.Background(), model.BookInput{
				Title: title, Author: author, Genre: genre, Year: strconv.Itoa(year),
			})
			if err != nil {
				return false
			}
			found, err := svc.Get(context.Background(), created.ID)
			if err != nil {
				return false
			}
			return found.Title == title &&
				found.Author == author &&
				found.Genre == genre &&
				found.Year != nil && *found.Year == year
		},
		nonBlank,
		nonBlank,
		gen.AlphaString(),
		gen.IntRange(1000, 9999),
	))

	properties.TestingRun(t)
}

// =========================================================================
// GET / UPDATE
// =========================================================================

func TestGet_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	for _, id := range []string{"nonexistent", "", "   "} {
		_, err := svc.Get(context.Background(), id)
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("Get(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestUpdate_Success(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, model.BookInput{Title: "Dnue", Author: "Herbert"})

	updated, err := svc.Update(context.Background(), created.ID, model.BookInput{
		Title: "Dune", Author: "Frank Herbert", Year: "1965",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.ID != created.ID {
		t.Errorf("ID changed from %q to %q", created.ID, updated.ID)
	}

	found, _ := svc.Get(context.Background(), created.ID)
	if found.Title != "Dune" || found.Author != "Frank Herbert" {
		t.Errorf("stored = %+v, want updated values", found)
	}
}

func TestUpdate_Invalid(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, model.BookInput{Title: "Dune", Author: "Herbert"})

	candidate, err := svc.Update(context.Background(), created.ID, model.BookInput{Title: "", Author: "Herbert"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("Update() error = %v, want ErrValidation", err)
	}
	if candidate == nil || candidate.ID != created.ID {
		t.Errorf("candidate = %+v, want id %q kept for the re-rendered form", candidate, created.ID)
	}

	found, _ := svc.Get(context.Background(), created.ID)
	if found.Title != "Dune" {
		t.Errorf("stored title = %q, want unchanged %q", found.Title, "Dune")
	}
}

func TestUpdate_NotFoundWinsOverValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Update(context.Background(), "nonexistent", model.BookInput{})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE
// =========================================================================

func TestDelete_Success(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, model.BookInput{Title: "to delete", Author: "x"})

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err := svc.Get(context.Background(), created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("after delete: error = %v, want ErrNotFound", err)
	}
}

func TestDelete_TwiceIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustCreate(t, svc, model.BookInput{Title: "once", Author: "x"})

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	err := svc.Delete(context.Background(), created.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestReady(t *testing.T) {
	svc, repo := newTestService(t)
	if err := svc.Ready(context.Background()); err != nil {
		t.Errorf("Ready() error = %v", err)
	}
	repo.failWith = errors.New("down")
	if err := svc.Ready(context.Background()); err == nil {
		t.Error("Ready() should fail when the repository is down")
	}
}
