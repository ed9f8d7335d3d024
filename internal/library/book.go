package library

import (
	"crypto/sha1"
	"fmt"
)

// Book is the top-level playable unit: an ordered sequence of chapters.
type Book struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Author   string    `json:"author,omitempty"`
	Chapters []Chapter `json:"chapters"`
	AddedAt  int64     `json:"addedAt"`
	PlayedAt int64     `json:"playedAt,omitempty"`
}

// Chapter is a contiguous playable segment with its own resource.
type Chapter struct {
	Title      string `json:"title"`
	URI        string `json:"uri"`
	DurationMS int64  `json:"durationMs,omitempty"`
}

// BookIDFromURI derives a stable book id from a source URI.
func BookIDFromURI(uri string) string {
	sum := sha1.Sum([]byte(uri))
	return fmt.Sprintf("tome:book:%x", sum[:8])
}

// ChapterAt returns the chapter at index, reporting whether it exists.
func (b Book) ChapterAt(index int) (Chapter, bool) {
	if index < 0 || index >= len(b.Chapters) {
		return Chapter{}, false
	}
	return b.Chapters[index], true
}
