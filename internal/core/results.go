package core

import (
	"github.com/tome-audio/tome/internal/library"
	"github.com/tome-audio/tome/pkg/tome"
)

// NodesResult carries the node listing.
type NodesResult struct {
	Nodes []tome.Presence `json:"nodes"`
}

// StatusResult carries a player status snapshot.
type StatusResult struct {
	Player tome.Presence    `json:"player"`
	State  tome.PlayerState `json:"state"`
}

// BooksResult carries a book listing.
type BooksResult struct {
	Books []library.Book `json:"books"`
}
