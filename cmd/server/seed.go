package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sakif/library-catalog/internal/model"
	"github.com/sakif/library-catalog/internal/server"
	"github.com/sakif/library-catalog/internal/service"
)

// sampleBooks go through the same validation as form submissions.
var sampleBooks = []model.BookInput{
	{Title: "A Brief History of Time", Author: "Stephen Hawking", Genre: "Non Fiction", Year: "1988"},
	{Title: "Armada", Author: "Ernest Cline", Genre: "Science Fiction", Year: "2015"},
	{Title: "Emma", Author: "Jane Austen", Genre: "Classic", Year: "1815"},
	{Title: "Frankenstein", Author: "Mary Shelley", Genre: "Horror", Year: "1818"},
	{Title: "Harry Potter and the Philosopher's Stone", Author: "J.K. Rowling", Genre: "Fantasy", Year: "1997"},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Genre: "Classic", Year: "1813"},
	{Title: "Ready Player One", Author: "Ernest Cline", Genre: "Science Fiction", Year: "2011"},
	{Title: "The Martian", Author: "Andy Weir", Genre: "Science Fiction", Year: "2014"},
	{Title: "The Hunger Games", Author: "Suzanne Collins", Genre: "Fantasy", Year: "2008"},
	{Title: "The Universe in a Nutshell", Author: "Stephen Hawking", Genre: "Non Fiction", Year: "2001"},
	{Title: "Mockingjay", Author: "Suzanne Collins", Genre: "Fantasy", Year: "2010"},
	{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", Year: "1965"},
}

func newSeedCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample books",
		Long:  "Insert a set of sample books. An already populated catalog is left alone unless --force is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.load()
			if err != nil {
				return err
			}

			store, err := server.OpenStorage(cmd.Context(), cfg.DB, logger)
			if err != nil {
				return fmt.Errorf("opening storage: %w", err)
			}
			defer store.Close()

			books := service.NewBookService(store, logger)
			n, err := seed(cmd.Context(), books, force)
			if err != nil {
				return err
			}
			logger.Info("seed finished", slog.Int("inserted", n))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "insert even when the catalog already has books")
	return cmd
}

// seed inserts sampleBooks and reports how many were stored.
func seed(ctx context.Context, books *service.BookService, force bool) (int, error) {
	if !force {
		listing, err := books.Page(ctx, 1)
		if err != nil {
			return 0, err
		}
		if listing.Total > 0 {
			return 0, nil
		}
	}

	for i, in := range sampleBooks {
		if _, err := books.Create(ctx, in); err != nil {
			return i, fmt.Errorf("seeding %q: %w", in.Title, err)
		}
	}
	return len(sampleBooks), nil
}
