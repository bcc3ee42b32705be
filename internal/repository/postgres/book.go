package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/repository"
)

var _ repository.BookRepository = (*DB)(nil)

const bookColumns = `id, title, author, genre, year, created_at, updated_at`

func scanBook(row pgx.Row) (model.Book, error) {
	var b model.Book
	// pgx scans a NULL integer into a nil *int directly.
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Year, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (db *DB) Create(ctx context.Context, book *model.Book) error {
	book.ID = xid.New().String()
	now := time.Now().UTC()
	book.CreatedAt = now
	book.UpdatedAt = now

	_, err := db.pool.Exec(ctx,
		`INSERT INTO books (id, title, author, genre, year, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		book.ID, book.Title, book.Author, book.Genre, book.Year, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating book: %w", err)
	}
	return nil
}

func (db *DB) GetByID(ctx context.Context, id string) (*model.Book, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, id)

	book, err := scanBook(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("book", id)
		}
		return nil, fmt.Errorf("postgres: getting book %s: %w", id, err)
	}
	return &book, nil
}

func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Book, error) {
	var limit *int // NULL means no limit
	if opts.Limit > 0 {
		limit = &opts.Limit
	}
	offset := max(opts.Offset, 0)

	rows, err := db.pool.Query(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing books: %w", err)
	}
	return collect(rows, "listing")
}

func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting books: %w", err)
	}
	return n, nil
}

func (db *DB) Search(ctx context.Context, query string) ([]model.Book, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+bookColumns+`
		 FROM books
		 WHERE title ILIKE $1 ESCAPE '\'
		    OR author ILIKE $1 ESCAPE '\'
		    OR genre ILIKE $1 ESCAPE '\'
		    OR year::text LIKE $1 ESCAPE '\'
		 ORDER BY id`,
		repository.LikePattern(query),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching books: %w", err)
	}
	return collect(rows, "searching")
}

func collect(rows pgx.Rows, op string) ([]model.Book, error) {
	defer rows.Close()

	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: %s books: scanning row: %w", op, err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s books: %w", op, err)
	}
	return books, nil
}

func (db *DB) Update(ctx context.Context, book *model.Book) error {
	book.UpdatedAt = time.Now().UTC()

	tag, err := db.pool.Exec(ctx,
		`UPDATE books
		 SET title = $1, author = $2, genre = $3, year = $4, updated_at = $5
		 WHERE id = $6`,
		book.Title, book.Author, book.Genre, book.Year, book.UpdatedAt, book.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: updating book %s: %w", book.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("book", book.ID)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting book %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("book", id)
	}
	return nil
}
