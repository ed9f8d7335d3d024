package feedlibrary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/adapters/mqttserver"
	"github.com/tome-audio/tome/internal/library"
	"github.com/tome-audio/tome/pkg/tome"
)

// Config configures the feed library module.
type Config struct {
	NodeID          string
	TopicBase       string
	Name            string
	Feeds           []string
	RefreshInterval time.Duration
	Timeout         time.Duration
}

// Module imports serialized audiobook feeds into the local library.
// Each feed becomes one book; feed items become chapters in published
// order.
type Module struct {
	log    *zap.Logger
	client *mqttserver.Client
	books  *library.Store
	http   *http.Client
	config Config
}

// NewModule initializes a feed library module.
func NewModule(log *zap.Logger, client *mqttserver.Client, books *library.Store, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("feed_library node_id required")
	}
	if len(cfg.Feeds) == 0 {
		return nil, errors.New("feed_library feeds required")
	}
	if books == nil {
		return nil, errors.New("feed_library requires a library store")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = tome.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Feed Library"
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 24 * time.Hour
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Module{
		log:    log,
		client: client,
		books:  books,
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}, nil
}

// Run starts the module.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

	m.syncAll(ctx)

	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.syncAll(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Module) publishPresence() error {
	presence := tome.Presence{
		NodeID: m.config.NodeID,
		Kind:   "library",
		Name:   m.config.Name,
		Caps: map[string]any{
			"feeds": len(m.config.Feeds),
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(tome.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) syncAll(ctx context.Context) {
	for _, feedURL := range m.config.Feeds {
		if ctx.Err() != nil {
			return
		}
		book, err := m.fetchBook(feedURL)
		if err != nil {
			m.log.Warn("fetch feed", zap.String("feed", feedURL), zap.Error(err))
			continue
		}
		if len(book.Chapters) == 0 {
			m.log.Warn("feed has no playable items", zap.String("feed", feedURL))
			continue
		}
		if err := m.books.Put(ctx, book); err != nil {
			m.log.Error("store book", zap.String("book", book.ID), zap.Error(err))
			continue
		}
		m.log.Info("imported feed",
			zap.String("book", book.ID),
			zap.String("title", book.Title),
			zap.Int("chapters", len(book.Chapters)))
	}
}

func (m *Module) fetchBook(feedURL string) (library.Book, error) {
	req, err := http.NewRequest("GET", feedURL, nil)
	if err != nil {
		return library.Book{}, err
	}
	req.Header.Set("User-Agent", "tome/1.0")

	resp, err := m.http.Do(req)
	if err != nil {
		return library.Book{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return library.Book{}, fmt.Errorf("feed fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return library.Book{}, err
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return library.Book{}, err
	}
	return bookFromFeed(feedURL, feed), nil
}

func bookFromFeed(feedURL string, feed *gofeed.Feed) library.Book {
	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = feedURL
	}

	type dated struct {
		chapter   library.Chapter
		published int64
	}
	items := make([]dated, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		audioURL := pickEnclosure(item)
		if audioURL == "" {
			continue
		}
		chapterTitle := strings.TrimSpace(item.Title)
		if chapterTitle == "" {
			chapterTitle = audioURL
		}
		items = append(items, dated{
			chapter: library.Chapter{
				Title:      chapterTitle,
				URI:        audioURL,
				DurationMS: parseDurationMS(item),
			},
			published: toUnix(item.PublishedParsed),
		})
	}
	// Chapters run oldest first so the feed reads like a book.
	sort.SliceStable(items, func(i, j int) bool { return items[i].published < items[j].published })

	chapters := make([]library.Chapter, 0, len(items))
	for _, entry := range items {
		chapters = append(chapters, entry.chapter)
	}

	return library.Book{
		ID:       library.BookIDFromURI(feedURL),
		Title:    title,
		Author:   bestFeedAuthor(feed),
		Chapters: chapters,
	}
}

func pickEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil {
			continue
		}
		if enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func bestFeedAuthor(feed *gofeed.Feed) string {
	if feed == nil {
		return ""
	}
	if feed.Author != nil && feed.Author.Name != "" {
		return strings.TrimSpace(feed.Author.Name)
	}
	if feed.ITunesExt != nil && feed.ITunesExt.Author != "" {
		return strings.TrimSpace(feed.ITunesExt.Author)
	}
	return ""
}

func parseDurationMS(item *gofeed.Item) int64 {
	if item == nil || item.ITunesExt == nil {
		return 0
	}
	raw := strings.TrimSpace(item.ITunesExt.Duration)
	if raw == "" {
		return 0
	}
	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		total := 0
		for _, part := range parts {
			n := 0
			fmt.Sscanf(part, "%d", &n)
			total = total*60 + n
		}
		return int64(total * 1000)
	}
	seconds := 0
	if _, err := fmt.Sscanf(raw, "%d", &seconds); err == nil {
		return int64(seconds * 1000)
	}
	return 0
}

func toUnix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}
