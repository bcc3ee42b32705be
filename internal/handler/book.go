package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/library-catalog/internal/apperror"
	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/service"
)

// Page titles of the book views.
const (
	titleIndex  = "My Books"
	titleNew    = "New Book"
	titleShow   = "Book Details"
	titleUpdate = "Update Book"
	titleDelete = "Delete Book"
)

// Name of the search box on the listing page.
const searchField = "searchInput"

// FirstPage is where the catalog starts.
const FirstPage = "/books/page/1"

// BookHandler serves the catalog pages.
//
// ROUTES (see server.setupRoutes):
//
//	GET  /books/page/{page}   → HandlePage
//	POST /books/              → HandleSearch
//	GET  /books/new           → HandleNew
//	POST /books/new           → HandleCreate
//	GET  /books/{id}          → HandleShow
//	GET  /books/{id}/edit     → HandleEdit
//	POST /books/{id}/edit     → HandleUpdate
//	GET  /books/{id}/delete   → HandleConfirmDelete
//	POST /books/{id}/delete   → HandleDelete
//
// Successful POSTs redirect with 303 See Other so a browser refresh does not
// submit the form again. A rejected form is rendered again with 422 and the
// values exactly as submitted.
type BookHandler struct {
	books  *service.BookService
	views  *Renderer
	logger *slog.Logger
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(books *service.BookService, views *Renderer, logger *slog.Logger) *BookHandler {
	return &BookHandler{
		books:  books,
		views:  views,
		logger: logger,
	}
}

// RedirectToFirstPage sends GET / and GET /books to the first listing page.
func RedirectToFirstPage(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, FirstPage, http.StatusFound)
}

// HandlePage renders one page of the listing.
// A page parameter that is not a positive integer is a 404.
func (h *BookHandler) HandlePage(w http.ResponseWriter, r *http.Request) error {
	raw := chi.URLParam(r, "page")
	page, err := strconv.Atoi(raw)
	if err != nil {
		return apperror.NotFound("page", raw)
	}

	listing, err := h.books.Page(r.Context(), page)
	if err != nil {
		return err
	}

	return h.views.Render(w, http.StatusOK, ViewIndex, PageData{
		Title:     titleIndex,
		Books:     listing.Books,
		Page:      listing.Page,
		PageLinks: pageLinks(listing.Pages),
	})
}

// HandleSearch renders every book matching the searchInput field, without
// pagination links.
func (h *BookHandler) HandleSearch(w http.ResponseWriter, r *http.Request) error {
	if err := parseForm(r); err != nil {
		return err
	}
	query := r.PostForm.Get(searchField)

	books, err := h.books.Search(r.Context(), query)
	if err != nil {
		return err
	}

	return h.views.Render(w, http.StatusOK, ViewIndex, PageData{
		Title:     titleIndex,
		Books:     books,
		Query:     query,
		Searching: true,
	})
}

// HandleNew renders the empty create form.
func (h *BookHandler) HandleNew(w http.ResponseWriter, r *http.Request) error {
	return h.views.Render(w, http.StatusOK, ViewNew, PageData{
		Title: titleNew,
		Book:  &model.Book{},
	})
}

// HandleCreate validates and stores a submitted book.
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) error {
	in, err := bookInput(r)
	if err != nil {
		return err
	}

	book, err := h.books.Create(r.Context(), in)
	var verrs apperror.ValidationErrors
	if errors.As(err, &verrs) {
		return h.views.Render(w, http.StatusUnprocessableEntity, ViewNew, PageData{
			Title:  titleNew,
			Book:   book,
			Form:   in,
			Errors: verrs,
		})
	}
	if err != nil {
		return err
	}

	http.Redirect(w, r, FirstPage, http.StatusSeeOther)
	return nil
}

// HandleShow renders one book.
func (h *BookHandler) HandleShow(w http.ResponseWriter, r *http.Request) error {
	book, err := h.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	return h.views.Render(w, http.StatusOK, ViewShow, PageData{
		Title: titleShow,
		Book:  book,
	})
}

// HandleEdit renders the update form pre-filled with the stored values.
func (h *BookHandler) HandleEdit(w http.ResponseWriter, r *http.Request) error {
	book, err := h.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	return h.views.Render(w, http.StatusOK, ViewUpdate, PageData{
		Title: titleUpdate,
		Book:  book,
		Form:  book.Input(),
	})
}

// HandleUpdate validates and stores the edited book.
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) error {
	in, err := bookInput(r)
	if err != nil {
		return err
	}

	book, err := h.books.Update(r.Context(), chi.URLParam(r, "id"), in)
	var verrs apperror.ValidationErrors
	if errors.As(err, &verrs) {
		return h.views.Render(w, http.StatusUnprocessableEntity, ViewUpdate, PageData{
			Title:  titleUpdate,
			Book:   book,
			Form:   in,
			Errors: verrs,
		})
	}
	if err != nil {
		return err
	}

	http.Redirect(w, r, "/books", http.StatusSeeOther)
	return nil
}

// HandleConfirmDelete asks before deleting.
func (h *BookHandler) HandleConfirmDelete(w http.ResponseWriter, r *http.Request) error {
	book, err := h.books.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}

	return h.views.Render(w, http.StatusOK, ViewDelete, PageData{
		Title: titleDelete,
		Book:  book,
	})
}

// HandleDelete removes the book and returns to the home page.
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) error {
	if err := h.books.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		return err
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
	return nil
}

// bookInput reads the four form fields. Absent fields are empty strings.
func bookInput(r *http.Request) (model.BookInput, error) {
	if err := parseForm(r); err != nil {
		return model.BookInput{}, err
	}
	return model.BookInput{
		Title:  r.PostForm.Get(model.FieldTitle),
		Author: r.PostForm.Get(model.FieldAuthor),
		Genre:  r.PostForm.Get(model.FieldGenre),
		Year:   r.PostForm.Get(model.FieldYear),
	}, nil
}

// parseForm parses the request body. An oversized body keeps its
// *http.MaxBytesError (413); any other parse failure is the client's (400).
func parseForm(r *http.Request) error {
	err := r.ParseForm()
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return fmt.Errorf("parsing form: %w: %w", apperror.ErrBadRequest, err)
}

// pageLinks returns the page numbers 1..pages.
func pageLinks(pages int) []int {
	links := make([]int, pages)
	for i := range links {
		links[i] = i + 1
	}
	return links
}
