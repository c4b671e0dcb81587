package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/compozy/bookstore/engine/book"
	"github.com/compozy/bookstore/engine/bookstore"
	"github.com/compozy/bookstore/engine/core"
	"github.com/compozy/bookstore/pkg/config"
	"github.com/spf13/cobra"
)

// BooksCmd groups the book record commands.
func BooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Create, update and read book records",
	}
	cmd.AddCommand(
		bookWriteCmd("create", "Insert a new book", bookstore.Port.CreateRecord),
		bookWriteCmd("update", "Update a book matched by ISBN", bookstore.Port.UpdateRecord),
		booksGetCmd(),
		booksReadCmd(),
	)
	return cmd
}

type bookWriter func(bookstore.Port, context.Context, *book.Book) error

func bookWriteCmd(use, short string, write bookWriter) *cobra.Command {
	var (
		title, author, isbn, metadata string
		tags                          []string
		avgReview                     float32
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b := &book.Book{Title: title, Author: author, ISBN: isbn}
			md, err := parseMetadataFlags(cmd, metadata, avgReview, tags)
			if err != nil {
				return err
			}
			b.Metadata = md
			return withService(cmd, func(ctx context.Context, port bookstore.Port) error {
				if err := write(port, ctx, b); err != nil {
					return err
				}
				return printJSON(cmd, b)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Book title")
	cmd.Flags().StringVar(&author, "author", "", "Book author")
	cmd.Flags().StringVar(&isbn, "isbn", "", "Book ISBN")
	cmd.Flags().StringVar(&metadata, "metadata", "", `Metadata as JSON, e.g. '{"avg_review":4.5,"tags":["scifi"]}'`)
	cmd.Flags().Float32Var(&avgReview, "avg-review", 0, "Average review score")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "Comma separated tags")
	return cmd
}

// parseMetadataFlags prefers --metadata; otherwise --avg-review/--tags build
// one. With none set the book carries no metadata.
func parseMetadataFlags(cmd *cobra.Command, raw string, avgReview float32, tags []string) (*book.Metadata, error) {
	if strings.TrimSpace(raw) != "" {
		md, err := book.DecodeMetadata([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: --metadata: %v", core.ErrInvalidInput, err)
		}
		return md, nil
	}
	if !cmd.Flags().Changed("avg-review") && !cmd.Flags().Changed("tags") {
		return nil, nil
	}
	return &book.Metadata{AvgReview: avgReview, Tags: tags}, nil
}

func booksGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <isbn>",
		Short: "Fetch one book by ISBN",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, port bookstore.Port) error {
				b, err := port.GetRecord(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, b)
			})
		},
	}
}

func booksReadCmd() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read every book with the chosen strategy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strategy == "" {
				strategy = config.FromContext(cmd.Context()).Runtime.DefaultReadStrategy
			}
			s, err := book.ParseReadStrategy(strategy)
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, port bookstore.Port) error {
				books, err := port.ReadAll(ctx, s)
				if err != nil {
					return err
				}
				if books == nil {
					books = []*book.Book{}
				}
				return printJSON(cmd, books)
			})
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "", "Read strategy: manual|declarative|streamed (or v1|v2|v3)")
	return cmd
}

func withService(cmd *cobra.Command, fn func(context.Context, bookstore.Port) error) error {
	ctx := cmd.Context()
	store, svc, err := openService(ctx, config.FromContext(ctx), false)
	if err != nil {
		return err
	}
	defer closeStore(ctx, store)
	return fn(ctx, svc)
}
