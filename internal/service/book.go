// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses forms, renders templates
//	Service (Business layer) → validates, paginates, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// BookService takes a repository.BookRepository (interface), NOT a concrete
// *sqlite.DB. The server decides which backend to inject; tests inject an
// in-memory mock (see book_test.go).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/repository"
)

// PageSize is the fixed number of books on one listing page.
const PageSize = 8

// MaxPage is the highest page number whose offset still fits in an int.
const MaxPage = math.MaxInt / PageSize

// NumberOfPages returns how many listing pages n books fill: ceil(n / PageSize).
func NumberOfPages(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + PageSize - 1) / PageSize
}

// Listing is one page of the catalog.
type Listing struct {
	Books []model.Book
	Page  int // 1-based page being shown
	Pages int // total number of pages
	Total int // total number of books
}

// BookService handles business logic for catalog books.
type BookService struct {
	repo   repository.BookRepository
	logger *slog.Logger
}

// NewBookService creates a new BookService.
func NewBookService(repo repository.BookRepository, logger *slog.Logger) *BookService {
	return &BookService{
		repo:   repo,
		logger: logger,
	}
}

// Page returns listing page number page (1-based).
//
// Pages below 1 or above MaxPage do not exist and return apperror.ErrNotFound;
// they are never turned into a negative or overflowed offset. Other pages past
// the last one are valid and empty.
func (s *BookService) Page(ctx context.Context, page int) (*Listing, error) {
	if page < 1 || page > MaxPage {
		return nil, apperror.NotFound("page", strconv.Itoa(page))
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count books", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting books: %w", err)
	}

	books, err := s.repo.List(ctx, repository.ListOptions{
		Limit:  PageSize,
		Offset: PageSize * (page - 1),
	})
	if err != nil {
		s.logger.Error("failed to list books",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing books page %d: %w", page, err)
	}

	return &Listing{
		Books: books,
		Page:  page,
		Pages: NumberOfPages(total),
		Total: total,
	}, nil
}

// Search returns every book matching query. Results are not paginated.
func (s *BookService) Search(ctx context.Context, query string) ([]model.Book, error) {
	books, err := s.repo.Search(ctx, query)
	if err != nil {
		s.logger.Error("failed to search books",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("searching books: %w", err)
	}
	return books, nil
}

// Create validates in and stores it as a new book.
//
// On a validation failure the returned book is the unsaved candidate built
// from in (so the form can be re-rendered) and the error is an
// apperror.ValidationErrors. Nothing is written in that case.
func (s *BookService) Create(ctx context.Context, in model.BookInput) (*model.Book, error) {
	book, err := model.ValidateBook(in)
	if err != nil {
		return book, err
	}

	if err := s.repo.Create(ctx, book); err != nil {
		s.logger.Error("failed to create book",
			slog.String("title", book.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating book: %w", err)
	}

	s.logger.Info("book created",
		slog.String("id", book.ID),
		slog.String("title", book.Title),
	)
	return book, nil
}

// Get retrieves a book by its ID.
// Returns apperror.ErrNotFound if the book doesn't exist.
func (s *BookService) Get(ctx context.Context, id string) (*model.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("book", id)
	}
	return s.repo.GetByID(ctx, id)
}

// Update replaces the fields of book id with in.
//
// The lookup happens first, so a missing id is reported as NotFound even when
// the submission is also invalid. A rejected submission returns the candidate
// (carrying id) together with apperror.ValidationErrors.
func (s *BookService) Update(ctx context.Context, id string, in model.BookInput) (*model.Book, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	candidate, err := model.ValidateBook(in)
	candidate.ID = existing.ID
	candidate.CreatedAt = existing.CreatedAt
	if err != nil {
		return candidate, err
	}

	if err := s.repo.Update(ctx, candidate); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to update book",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating book: %w", err)
	}

	s.logger.Info("book updated",
		slog.String("id", candidate.ID),
		slog.String("title", candidate.Title),
	)
	return candidate, nil
}

// Delete removes a book permanently.
// Deleting an id that does not exist (including a second delete) returns
// apperror.ErrNotFound rather than a storage error.
func (s *BookService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.NotFound("book", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("failed to delete book",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return fmt.Errorf("deleting book: %w", err)
	}

	s.logger.Info("book deleted", slog.String("id", id))
	return nil
}

// Ready reports whether the storage backend is reachable.
func (s *BookService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
