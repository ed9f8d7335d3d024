package session

import (
	"encoding/json"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/tome-audio/tome/pkg/tome"
)

// companionTracker watches retained presence announcements and reports
// whether at least one companion node is currently attached. An empty
// retained payload clears a node.
type companionTracker struct {
	mu    sync.Mutex
	nodes map[string]struct{}
}

func (t *companionTracker) handlePresence(_ paho.Client, msg paho.Message) {
	if len(msg.Payload()) == 0 {
		t.forgetTopic(msg.Topic())
		return
	}
	var presence tome.Presence
	if err := json.Unmarshal(msg.Payload(), &presence); err != nil {
		return
	}
	if presence.Kind != "companion" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nodes == nil {
		t.nodes = make(map[string]struct{})
	}
	t.nodes[presence.NodeID] = struct{}{}
}

func (t *companionTracker) forgetTopic(topic string) {
	nodeID, ok := tome.NodeFromPresenceTopic(topic)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.nodes, nodeID)
}

// Connected reports whether any companion node is attached.
func (t *companionTracker) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes) > 0
}
