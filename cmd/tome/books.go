package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tome-audio/tome/internal/core"
	"github.com/tome-audio/tome/internal/library"
)

func booksCommand() *cobra.Command {
	var libraryPath string

	cmd := &cobra.Command{
		Use:   "books",
		Short: "List books in the local library",
		Long:  "List books stored in the local library directory, most recently played first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			path := libraryPath
			if path == "" {
				path = app.libraryPath
			}
			store, err := library.NewStore(path)
			if err != nil {
				return err
			}
			books, err := store.Books(ctx)
			if err != nil {
				return err
			}
			return app.printer.Print(core.BooksResult{Books: books})
		},
	}
	cmd.Flags().StringVar(&libraryPath, "library", "", "library path override")

	return cmd
}
