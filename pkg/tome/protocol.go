package tome

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BaseTopic is the default MQTT topic prefix for the protocol.
const BaseTopic = "tome/v1"

// Command types understood by the player session.
const (
	CmdPlay           = "playback.play"
	CmdPause          = "playback.pause"
	CmdStop           = "playback.stop"
	CmdSeek           = "playback.seek"
	CmdSetSpeed       = "playback.setSpeed"
	CmdSkipForward    = "playback.skipForward"
	CmdSkipRewind     = "playback.skipRewind"
	CmdSkipNext       = "playback.skipNext"
	CmdSkipPrev       = "playback.skipPrev"
	CmdSkipToChapter  = "playback.skipToChapter"
	CmdPlayFromID     = "playback.playFromId"
	CmdPlayFromSearch = "playback.playFromSearch"
	CmdAction         = "playback.action"
)

// Custom action names carried by playback.action commands.
const (
	ActionPlayPauseToggle = "play-pause-toggle"
	ActionSkipSilence     = "skip-silence"
	ActionSetLoudnessGain = "set-loudness-gain"
	ActionSetPosition     = "set-position"
	ActionForcedPrevious  = "forced-previous"
	ActionForcedNext      = "forced-next"
	ActionNext            = "next"
	ActionPrevious        = "previous"
	ActionFastForward     = "fast-forward"
	ActionRewind          = "rewind"
)

// CommandEnvelope is the common controller command envelope for MQTT.
type CommandEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	TS      int64           `json:"ts"`
	From    string          `json:"from"`
	ReplyTo string          `json:"replyTo,omitempty"`
	Body    json.RawMessage `json:"body"`
}

// ReplyEnvelope is the response envelope for commands.
type ReplyEnvelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Body json.RawMessage `json:"body,omitempty"`
	Err  *ReplyError     `json:"err,omitempty"`
}

// ReplyError describes an error response.
type ReplyError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Presence describes a node presence payload.
type Presence struct {
	NodeID string         `json:"nodeId"`
	Kind   string         `json:"kind"`
	Name   string         `json:"name"`
	Caps   map[string]any `json:"caps,omitempty"`
	TS     int64          `json:"ts"`
}

// SeekBody is the payload of playback.seek.
type SeekBody struct {
	PositionMS int64 `json:"positionMs"`
}

// SetSpeedBody is the payload of playback.setSpeed.
type SetSpeedBody struct {
	Rate float64 `json:"rate"`
}

// SkipToChapterBody is the payload of playback.skipToChapter.
type SkipToChapterBody struct {
	Index int `json:"index"`
}

// PlayFromIDBody is the payload of playback.playFromId.
type PlayFromIDBody struct {
	ID string `json:"id"`
}

// PlayFromSearchBody is the payload of playback.playFromSearch.
type PlayFromSearchBody struct {
	Query  string            `json:"query"`
	Extras map[string]string `json:"extras,omitempty"`
}

// ActionBody is the payload of playback.action. Fields beyond Name are
// interpreted per action; absent fields are nil.
type ActionBody struct {
	Name  string  `json:"name"`
	Value *bool   `json:"value,omitempty"`
	MB    *int    `json:"mb,omitempty"`
	URI   *string `json:"uri,omitempty"`
	Time  *int64  `json:"time,omitempty"`
}

// PlayerState captures the retained state of a player node.
type PlayerState struct {
	Status       string  `json:"status"`
	BookID       string  `json:"bookId,omitempty"`
	BookTitle    string  `json:"bookTitle,omitempty"`
	Chapter      int     `json:"chapter"`
	ChapterTitle string  `json:"chapterTitle,omitempty"`
	PositionMS   int64   `json:"positionMs"`
	Rate         float64 `json:"rate"`
	SkipSilence  bool    `json:"skipSilence"`
	GainMB       int     `json:"gainMb"`
	StateVersion int64   `json:"stateVersion,omitempty"`
	TS           int64   `json:"ts"`
}

// NewCommand builds a command envelope with a JSON body.
func NewCommand(cmdType string, body any) (CommandEnvelope, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return CommandEnvelope{}, fmt.Errorf("marshal body: %w", err)
	}

	return CommandEnvelope{
		Type: cmdType,
		Body: payload,
	}, nil
}

// ValidateCommandEnvelope validates required envelope fields.
func ValidateCommandEnvelope(cmd CommandEnvelope) error {
	if strings.TrimSpace(cmd.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(cmd.Type) == "" {
		return errors.New("type is required")
	}
	if cmd.TS <= 0 {
		return errors.New("ts must be a positive unix timestamp")
	}
	if strings.TrimSpace(cmd.From) == "" {
		return errors.New("from is required")
	}
	if len(cmd.Body) == 0 {
		return errors.New("body is required")
	}
	return nil
}

// KnownCommandType reports whether a command type belongs to the
// playback vocabulary.
func KnownCommandType(cmdType string) bool {
	switch cmdType {
	case CmdPlay, CmdPause, CmdStop, CmdSeek, CmdSetSpeed,
		CmdSkipForward, CmdSkipRewind, CmdSkipNext, CmdSkipPrev,
		CmdSkipToChapter, CmdPlayFromID, CmdPlayFromSearch, CmdAction:
		return true
	default:
		return false
	}
}

// TopicPresence builds the presence topic for a node.
func TopicPresence(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/presence", topicBase, nodeID)
}

// TopicState builds the state topic for a node.
func TopicState(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/state", topicBase, nodeID)
}

// TopicCommands builds the command topic for a node.
func TopicCommands(topicBase, nodeID string) string {
	return fmt.Sprintf("%s/node/%s/cmd", topicBase, nodeID)
}

// TopicReply builds the reply topic for a controller instance.
func TopicReply(topicBase, controllerID string) string {
	return fmt.Sprintf("%s/reply/%s", topicBase, controllerID)
}

// NodeFromPresenceTopic extracts the node id from a presence topic.
func NodeFromPresenceTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 {
		return "", false
	}
	if parts[len(parts)-1] != "presence" || parts[len(parts)-3] != "node" {
		return "", false
	}
	return parts[len(parts)-2], true
}
