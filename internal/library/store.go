package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store persists books as one JSON file per book under a root directory.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore creates a book store at root.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("library path required")
	}
	if err := os.MkdirAll(filepath.Join(root, "books"), 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

// Books returns all books, most recently played first, then most
// recently added.
func (s *Store) Books(ctx context.Context) ([]Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.readAllLocked()
	if err != nil {
		return nil, err
	}

	sort.Slice(books, func(i, j int) bool {
		if books[i].PlayedAt != books[j].PlayedAt {
			return books[i].PlayedAt > books[j].PlayedAt
		}
		return books[i].AddedAt > books[j].AddedAt
	})
	return books, nil
}

// BookByID loads a book by id. The second return reports existence.
func (s *Store) BookByID(ctx context.Context, id string) (Book, bool, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var book Book
	if err := readJSON(s.bookPath(id), &book); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Book{}, false, nil
		}
		return Book{}, false, err
	}
	return book, true, nil
}

// BookByURI finds the book owning a chapter resource URI.
func (s *Store) BookByURI(ctx context.Context, uri string) (Book, bool, error) {
	if err := ctx.Err(); err != nil {
		return Book{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	books, err := s.readAllLocked()
	if err != nil {
		return Book{}, false, err
	}
	for _, book := range books {
		for _, chapter := range book.Chapters {
			if chapter.URI == uri {
				return book, true, nil
			}
		}
	}
	return Book{}, false, nil
}

// Put writes a book to disk, preserving AddedAt of a prior record.
func (s *Store) Put(ctx context.Context, book Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(book.ID) == "" {
		return errors.New("book id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var prior Book
	if err := readJSON(s.bookPath(book.ID), &prior); err == nil {
		if book.AddedAt == 0 {
			book.AddedAt = prior.AddedAt
		}
		if book.PlayedAt == 0 {
			book.PlayedAt = prior.PlayedAt
		}
	}
	if book.AddedAt == 0 {
		book.AddedAt = time.Now().Unix()
	}
	return writeJSON(s.bookPath(book.ID), book)
}

// TouchPlayed updates a book's last-played timestamp. Missing books
// are ignored.
func (s *Store) TouchPlayed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var book Book
	if err := readJSON(s.bookPath(id), &book); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	book.PlayedAt = time.Now().Unix()
	return writeJSON(s.bookPath(id), book)
}

// Delete removes a book. Missing books are ignored.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.bookPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) readAllLocked() ([]Book, error) {
	paths, err := filepath.Glob(filepath.Join(s.root, "books", "*.json"))
	if err != nil {
		return nil, err
	}

	books := make([]Book, 0, len(paths))
	for _, path := range paths {
		var book Book
		if err := readJSON(path, &book); err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}

func (s *Store) bookPath(id string) string {
	return filepath.Join(s.root, "books", safeFilename(id)+".json")
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := fmt.Sprintf("%s.tmp.%d", path, time.Now().UnixNano())
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func safeFilename(id string) string {
	replacer := strings.NewReplacer(":", "_", "/", "_", "\\", "_", " ", "_")
	return replacer.Replace(id)
}
