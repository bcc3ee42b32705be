// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data — similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/library-catalog/internal/apperror"
)

// Book is one catalog record.
//
// Year is a pointer because it is optional: nil means "not recorded",
// which is different from year 0. Templates check it with {{with .Year}}.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Genre     string    `json:"genre"`
	Year      *int      `json:"year,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// YearString renders Year for form inputs and search matching.
func (b *Book) YearString() string {
	if b == nil || b.Year == nil {
		return ""
	}
	return strconv.Itoa(*b.Year)
}

// BookInput holds the raw form fields exactly as they were submitted.
// Keeping Year as a string lets validation look at what the user typed
// before any numeric conversion happens.
type BookInput struct {
	Title  string
	Author string
	Genre  string
	Year   string
}

// Field names used in validation errors and form inputs.
const (
	FieldTitle  = "title"
	FieldAuthor = "author"
	FieldGenre  = "genre"
	FieldYear   = "year"
)

var yearRX = regexp.MustCompile(`^\d{4}$`)

// ValidateBook checks in and converts it to a Book candidate.
//
// The candidate is always returned, even when validation fails, so the form
// can be shown again pre-filled with what the user submitted. The error is
// either nil or an apperror.ValidationErrors with one entry per bad field.
//
// The year pattern is matched against the raw string, so "99" and "20x4"
// are rejected instead of being silently coerced.
func ValidateBook(in BookInput) (*Book, error) {
	book := &Book{
		Title:  strings.TrimSpace(in.Title),
		Author: strings.TrimSpace(in.Author),
		Genre:  strings.TrimSpace(in.Genre),
	}

	var errs apperror.ValidationErrors
	errs.Check(book.Title != "", FieldTitle, "Title is required")
	errs.Check(book.Author != "", FieldAuthor, "Author is required")

	if year := strings.TrimSpace(in.Year); year != "" {
		if yearRX.MatchString(year) {
			n, _ := strconv.Atoi(year) // four ASCII digits always parse
			book.Year = &n
		} else {
			errs.Check(false, FieldYear, "Year must be in the form YYYY")
		}
	}

	if len(errs) > 0 {
		return book, errs
	}
	return book, nil
}

// Input converts a stored book back into form values.
func (b *Book) Input() BookInput {
	return BookInput{
		Title:  b.Title,
		Author: b.Author,
		Genre:  b.Genre,
		Year:   b.YearString(),
	}
}
