// Package repository declares the storage contracts the service layer depends on.
// Concrete implementations live in sub-packages (sqlite, postgres).
package repository

import (
	"context"

	"github.com/sakif/library-catalog/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// BookRepository persists books.
//
// GetByID, Update and Delete return apperror.ErrNotFound (wrapped) when no
// row matches the id. List and Search return rows in primary key order,
// which is insertion order because ids are time-sortable.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	List(ctx context.Context, opts ListOptions) ([]model.Book, error)
	Count(ctx context.Context) (int, error)
	Search(ctx context.Context, query string) ([]model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
