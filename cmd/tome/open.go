package main

import (
	"context"

	"github.com/spf13/cobra"
)

func openCommand() *cobra.Command {
	var player string

	cmd := &cobra.Command{
		Use:   "open <book-id>",
		Short: "Open a book by id and start playback",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			return app.service.PlayBook(ctx, player, args[0])
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "player selector")

	return cmd
}

func searchCommand() *cobra.Command {
	var (
		player string
		title  string
		author string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Find a book and start playback",
		Long:  "Find a book by free-text query or structured title/author filters. An empty query resumes the most recent book.",
		Args:  cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := withTimeout(context.Background(), app.timeout)
			defer cancel()

			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return app.service.Search(ctx, player, query, title, author)
		},
	}
	cmd.Flags().StringVarP(&player, "player", "p", "", "player selector")
	cmd.Flags().StringVar(&title, "title", "", "match by title")
	cmd.Flags().StringVar(&author, "author", "", "match by author")

	return cmd
}
