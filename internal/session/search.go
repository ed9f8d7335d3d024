package session

import (
	"strings"

	"github.com/tome-audio/tome/internal/library"
)

// SearchKind tags a structured search intent.
type SearchKind int

// Search intent kinds.
const (
	// SearchEmpty means "play anything": no query was given.
	SearchEmpty SearchKind = iota
	// SearchUnstructured carries free text to match against books.
	SearchUnstructured
)

// SearchIntent is the structured form of a free-text search query.
type SearchIntent struct {
	Kind   SearchKind
	Query  string
	Title  string
	Author string
}

// InterpretSearch parses a free-text query plus auxiliary metadata into
// a structured intent. Pure function.
func InterpretSearch(query string, extras map[string]string) SearchIntent {
	query = strings.TrimSpace(query)
	if query == "" {
		return SearchIntent{Kind: SearchEmpty}
	}
	return SearchIntent{
		Kind:   SearchUnstructured,
		Query:  query,
		Title:  strings.TrimSpace(extras["title"]),
		Author: strings.TrimSpace(extras["author"]),
	}
}

// matchBook selects the target book for an intent: exact title or
// author match first, then the most recent book as fallback. The books
// slice is expected in most-recent-first order.
func matchBook(intent SearchIntent, books []library.Book) (library.Book, bool) {
	if len(books) == 0 {
		return library.Book{}, false
	}
	if intent.Kind == SearchEmpty {
		return books[0], true
	}

	for _, book := range books {
		if equalsFold(book.Title, intent.Title) || equalsFold(book.Title, intent.Query) {
			return book, true
		}
	}
	for _, book := range books {
		if equalsFold(book.Author, intent.Author) || equalsFold(book.Author, intent.Query) {
			return book, true
		}
	}
	return books[0], true
}

func equalsFold(have, want string) bool {
	return want != "" && strings.EqualFold(have, want)
}
