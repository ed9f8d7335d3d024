package session

import "strings"

// BookIDPrefix is the namespace of book identifiers in the control
// protocol.
const BookIDPrefix = "tome:book:"

// RefKind tags the result of parsing an external identifier.
type RefKind int

// Reference kinds.
const (
	RefUnrecognized RefKind = iota
	RefBook
)

// Ref is a typed reference produced from an opaque identifier string.
// It never carries playback state.
type Ref struct {
	Kind   RefKind
	BookID string
}

// ParseRef resolves an opaque identifier into a typed reference.
// Malformed or unknown input yields RefUnrecognized, never an error.
func ParseRef(id string) Ref {
	id = strings.TrimSpace(id)
	if !strings.HasPrefix(id, BookIDPrefix) {
		return Ref{Kind: RefUnrecognized}
	}
	if strings.TrimPrefix(id, BookIDPrefix) == "" {
		return Ref{Kind: RefUnrecognized}
	}
	return Ref{Kind: RefBook, BookID: id}
}
