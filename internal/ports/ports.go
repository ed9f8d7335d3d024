package ports

import (
	"context"

	"github.com/tome-audio/tome/pkg/tome"
)

// Broker publishes commands and reads retained state/presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd tome.CommandEnvelope) (tome.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]tome.Presence, error)
	GetPlayerState(ctx context.Context, nodeID string) (tome.PlayerState, error)
	WatchPlayer(ctx context.Context, nodeID string) (<-chan tome.PlayerState, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
