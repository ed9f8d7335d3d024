package feedlibrary

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/library"
)

func TestSyncAllImportsFeedAsBook(t *testing.T) {
	feedURL := "http://example.test/feed.xml"
	books, err := library.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	module, err := NewModule(zap.NewNop(), nil, books, Config{
		NodeID:          "tome:library:feed:test",
		Feeds:           []string{feedURL},
		RefreshInterval: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	module.http = &http.Client{Transport: testTransport(func(_ *http.Request) (*http.Response, error) {
		return feedResponse(testFeed), nil
	})}

	ctx := context.Background()
	module.syncAll(ctx)

	book, ok, err := books.BookByID(ctx, library.BookIDFromURI(feedURL))
	if err != nil {
		t.Fatalf("book by id: %v", err)
	}
	if !ok {
		t.Fatal("expected imported book")
	}
	if book.Title != "The Iron Harbour" {
		t.Fatalf("title = %q", book.Title)
	}
	if book.Author != "A. Narrator" {
		t.Fatalf("author = %q", book.Author)
	}
	if len(book.Chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(book.Chapters))
	}
	// Oldest item first, regardless of feed order.
	if book.Chapters[0].Title != "Chapter One" {
		t.Fatalf("first chapter = %q", book.Chapters[0].Title)
	}
	if book.Chapters[0].URI != "https://example.com/ch1.mp3" {
		t.Fatalf("first chapter uri = %q", book.Chapters[0].URI)
	}
	if book.Chapters[0].DurationMS != (1*3600+2*60+3)*1000 {
		t.Fatalf("first chapter duration = %d", book.Chapters[0].DurationMS)
	}
}

func TestSyncAllPreservesPlayHistory(t *testing.T) {
	feedURL := "http://example.test/feed.xml"
	books, err := library.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	module, err := NewModule(zap.NewNop(), nil, books, Config{
		NodeID: "tome:library:feed:test",
		Feeds:  []string{feedURL},
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	module.http = &http.Client{Transport: testTransport(func(_ *http.Request) (*http.Response, error) {
		return feedResponse(testFeed), nil
	})}

	module.syncAll(ctx)
	bookID := library.BookIDFromURI(feedURL)
	if err := books.TouchPlayed(ctx, bookID); err != nil {
		t.Fatalf("touch played: %v", err)
	}
	module.syncAll(ctx)

	book, ok, err := books.BookByID(ctx, bookID)
	if err != nil || !ok {
		t.Fatalf("book by id: ok=%v err=%v", ok, err)
	}
	if book.PlayedAt == 0 {
		t.Fatal("expected play history to survive refresh")
	}
}

func TestSyncAllSkipsFeedWithoutAudio(t *testing.T) {
	feedURL := "http://example.test/empty.xml"
	books, err := library.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	module, err := NewModule(zap.NewNop(), nil, books, Config{
		NodeID: "tome:library:feed:test",
		Feeds:  []string{feedURL},
	})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	module.http = &http.Client{Transport: testTransport(func(_ *http.Request) (*http.Response, error) {
		return feedResponse(emptyFeed), nil
	})}

	ctx := context.Background()
	module.syncAll(ctx)

	all, err := books.Books(ctx)
	if err != nil {
		t.Fatalf("books: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no books, got %d", len(all))
	}
}

func TestNewModuleValidation(t *testing.T) {
	books, err := library.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := NewModule(zap.NewNop(), nil, books, Config{Feeds: []string{"http://x"}}); err == nil {
		t.Fatal("expected error for missing node id")
	}
	if _, err := NewModule(zap.NewNop(), nil, books, Config{NodeID: "n"}); err == nil {
		t.Fatal("expected error for missing feeds")
	}
	if _, err := NewModule(zap.NewNop(), nil, nil, Config{NodeID: "n", Feeds: []string{"http://x"}}); err == nil {
		t.Fatal("expected error for missing store")
	}
}

type testTransport func(*http.Request) (*http.Response, error)

func (t testTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t(r)
}

func feedResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: 200,
		Status:     "200 OK",
		Header:     http.Header{"Content-Type": []string{"application/rss+xml"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>The Iron Harbour</title>
  <description>A serialized audiobook</description>
  <itunes:author>A. Narrator</itunes:author>
  <item>
    <title>Chapter Two</title>
    <guid>ch-2</guid>
    <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
    <enclosure url="https://example.com/ch2.mp3" length="456" type="audio/mpeg"/>
  </item>
  <item>
    <title>Chapter One</title>
    <guid>ch-1</guid>
    <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    <enclosure url="https://example.com/ch1.mp3" length="123" type="audio/mpeg"/>
    <itunes:duration>01:02:03</itunes:duration>
  </item>
</channel>
</rss>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Silent Feed</title>
  <item>
    <title>Just Text</title>
    <guid>t-1</guid>
  </item>
</channel>
</rss>`
