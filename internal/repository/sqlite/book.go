package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/repository"
)

// Compile-time check that *DB satisfies the repository contract.
var _ repository.BookRepository = (*DB)(nil)

const bookColumns = `id, title, author, genre, year, created_at, updated_at`

// rowScanner is the common subset of *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(s rowScanner) (model.Book, error) {
	var (
		b    model.Book
		year sql.NullInt64
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &year, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return model.Book{}, err
	}
	if year.Valid {
		y := int(year.Int64)
		b.Year = &y
	}
	return b, nil
}

// nullYear converts the optional year into something database/sql can bind.
func nullYear(year *int) sql.NullInt64 {
	if year == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*year), Valid: true}
}

// Create inserts a new book and fills in its ID and timestamps.
//
// xid ids are 20 URL-safe characters that sort by creation time,
// so ORDER BY id gives the same order the rows were inserted in.
func (db *DB) Create(ctx context.Context, book *model.Book) error {
	book.ID = xid.New().String()

	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO books (id, title, author, genre, year, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.ID,
		book.Title,
		book.Author,
		book.Genre,
		nullYear(book.Year),
		book.CreatedAt,
		book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating book: %w", err)
	}

	return nil
}

// GetByID retrieves a single book by its ID.
// sql.ErrNoRows is translated to apperror.NotFound so handlers can answer 404.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Book, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ?`,
		id,
	)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("book", id)
		}
		return nil, fmt.Errorf("sqlite: getting book %s: %w", id, err)
	}

	return &book, nil
}

// List returns one window of books in primary key order.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Book, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 ORDER BY id
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing books: %w", err)
	}
	return collect(rows, "listing")
}

// Count returns the total number of books.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting books: %w", err)
	}
	return n, nil
}

// Search returns every book where query is a case-insensitive substring of
// the title, author, genre or the decimal form of the year. Case folding
// covers non-ASCII letters too (see fold).
func (db *DB) Search(ctx context.Context, query string) ([]model.Book, error) {
	pattern := repository.LikePattern(query)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 WHERE fold(title) LIKE fold(?) ESCAPE '\'
		    OR fold(author) LIKE fold(?) ESCAPE '\'
		    OR fold(genre) LIKE fold(?) ESCAPE '\'
		    OR CAST(year AS TEXT) LIKE ? ESCAPE '\'
		 ORDER BY id`,
		pattern, pattern, pattern, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching books: %w", err)
	}
	return collect(rows, "searching")
}

func collect(rows *sql.Rows, op string) ([]model.Book, error) {
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s books: scanning row: %w", op, err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %s books: %w", op, err)
	}
	return books, nil
}

// Update overwrites the editable fields of an existing book.
// id and created_at are immutable.
func (db *DB) Update(ctx context.Context, book *model.Book) error {
	book.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE books
		 SET title = ?, author = ?, genre = ?, year = ?, updated_at = ?
		 WHERE id = ?`,
		book.Title,
		book.Author,
		book.Genre,
		nullYear(book.Year),
		book.UpdatedAt,
		book.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating book %s: %w", book.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", book.ID)
	}

	return nil
}

// Delete permanently removes a book.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting book %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("book", id)
	}

	return nil
}
