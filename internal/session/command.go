package session

import (
	"encoding/json"
	"fmt"

	"github.com/tome-audio/tome/pkg/tome"
)

// Command is the decoded form of an inbound control command.
type Command struct {
	Type string

	// Per-command arguments; only the fields for Type are meaningful.
	PositionMS int64
	Rate       float64
	Index      int
	ID         string
	Query      string
	Extras     map[string]string
	Action     tome.ActionBody
}

// CommandFromEnvelope decodes a wire envelope into a Command. A decode
// error means the envelope body did not match the command type.
func CommandFromEnvelope(env tome.CommandEnvelope) (Command, error) {
	cmd := Command{Type: env.Type}

	switch env.Type {
	case tome.CmdPlay, tome.CmdPause, tome.CmdStop,
		tome.CmdSkipForward, tome.CmdSkipRewind,
		tome.CmdSkipNext, tome.CmdSkipPrev:
		return cmd, nil
	case tome.CmdSeek:
		var body tome.SeekBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.PositionMS = body.PositionMS
	case tome.CmdSetSpeed:
		var body tome.SetSpeedBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.Rate = body.Rate
	case tome.CmdSkipToChapter:
		var body tome.SkipToChapterBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.Index = body.Index
	case tome.CmdPlayFromID:
		var body tome.PlayFromIDBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.ID = body.ID
	case tome.CmdPlayFromSearch:
		var body tome.PlayFromSearchBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.Query = body.Query
		cmd.Extras = body.Extras
	case tome.CmdAction:
		var body tome.ActionBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return Command{}, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		cmd.Action = body
	default:
		// Unknown types pass through; the dispatcher decides whether
		// that is fatal.
	}
	return cmd, nil
}
