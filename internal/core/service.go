package core

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/tome-audio/tome/internal/ports"
	"github.com/tome-audio/tome/pkg/tome"
)

// Service orchestrates tome CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListNodes returns presence entries with optional filters.
func (s Service) ListNodes(ctx context.Context, kind string, onlineOnly bool) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	if kind != "" {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.Kind == kind {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	// Online filtering relies on presence; with retained presence this is best-effort.
	if onlineOnly {
		filtered := nodes[:0]
		for _, node := range nodes {
			if node.TS > 0 {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	return NodesResult{Nodes: nodes}, nil
}

// Status returns the retained player state.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	state, err := s.Broker.GetPlayerState(ctx, player.NodeID)
	if err != nil {
		return StatusResult{}, WrapError(ExitRuntime, "get player state", err)
	}
	return StatusResult{Player: player, State: state}, nil
}

// WatchStatus streams player state updates.
func (s Service) WatchStatus(ctx context.Context, selector string) (<-chan tome.PlayerState, <-chan error, error) {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return nil, nil, err
	}
	states, errs := s.Broker.WatchPlayer(ctx, player.NodeID)
	return states, errs, nil
}

// Play sends playback.play.
func (s Service) Play(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdPlay, struct{}{})
}

// Pause sends playback.pause.
func (s Service) Pause(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdPause, struct{}{})
}

// Stop sends playback.stop.
func (s Service) Stop(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdStop, struct{}{})
}

// Toggle sends the play-pause-toggle action. The player decides the
// direction, lazily loading the current book first if needed.
func (s Service) Toggle(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdAction, tome.ActionBody{Name: tome.ActionPlayPauseToggle})
}

// Seek sends playback.seek with an absolute or relative position.
func (s Service) Seek(ctx context.Context, selector string, seekArg string) error {
	position, err := s.resolveSeekPosition(ctx, selector, seekArg)
	if err != nil {
		return err
	}
	return s.simplePlayback(ctx, selector, tome.CmdSeek, tome.SeekBody{PositionMS: position})
}

// SetSpeed sends playback.setSpeed.
func (s Service) SetSpeed(ctx context.Context, selector string, rate float64) error {
	if rate <= 0 {
		return &CLIError{Code: ExitUsage, Msg: "rate must be positive"}
	}
	return s.simplePlayback(ctx, selector, tome.CmdSetSpeed, tome.SetSpeedBody{Rate: rate})
}

// Next sends playback.skipNext.
func (s Service) Next(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdSkipNext, struct{}{})
}

// Prev sends playback.skipPrev.
func (s Service) Prev(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdSkipPrev, struct{}{})
}

// FastForward sends playback.skipForward.
func (s Service) FastForward(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdSkipForward, struct{}{})
}

// Rewind sends playback.skipRewind.
func (s Service) Rewind(ctx context.Context, selector string) error {
	return s.simplePlayback(ctx, selector, tome.CmdSkipRewind, struct{}{})
}

// Chapter sends playback.skipToChapter with a zero-based index.
func (s Service) Chapter(ctx context.Context, selector string, index int) error {
	if index < 0 {
		return &CLIError{Code: ExitUsage, Msg: "chapter index must not be negative"}
	}
	return s.simplePlayback(ctx, selector, tome.CmdSkipToChapter, tome.SkipToChapterBody{Index: index})
}

// PlayBook sends playback.playFromId.
func (s Service) PlayBook(ctx context.Context, selector string, bookID string) error {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return &CLIError{Code: ExitUsage, Msg: "book id required"}
	}
	return s.simplePlayback(ctx, selector, tome.CmdPlayFromID, tome.PlayFromIDBody{ID: bookID})
}

// Search sends playback.playFromSearch with optional structured extras.
func (s Service) Search(ctx context.Context, selector string, query, title, author string) error {
	extras := map[string]string{}
	if title != "" {
		extras["title"] = title
	}
	if author != "" {
		extras["author"] = author
	}
	if len(extras) == 0 {
		extras = nil
	}
	return s.simplePlayback(ctx, selector, tome.CmdPlayFromSearch, tome.PlayFromSearchBody{Query: query, Extras: extras})
}

// ActionArgs carries optional parameters for a custom action.
type ActionArgs struct {
	Value *bool
	MB    *int
	URI   *string
	Time  *int64
}

// Action sends an arbitrary playback.action by name.
func (s Service) Action(ctx context.Context, selector string, name string, args ActionArgs) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &CLIError{Code: ExitUsage, Msg: "action name required"}
	}
	body := tome.ActionBody{
		Name:  name,
		Value: args.Value,
		MB:    args.MB,
		URI:   args.URI,
		Time:  args.Time,
	}
	return s.simplePlayback(ctx, selector, tome.CmdAction, body)
}

func (s Service) simplePlayback(ctx context.Context, selector string, cmdType string, body any) error {
	player, err := s.Resolver.ResolvePlayer(ctx, selector)
	if err != nil {
		return err
	}
	cmd, err := tome.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)
	return s.publishSimple(ctx, player.NodeID, cmd)
}

func (s Service) publishSimple(ctx context.Context, nodeID string, cmd tome.CommandEnvelope) error {
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	return nil
}

func (s Service) decorateCommand(cmd tome.CommandEnvelope) tome.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}

func (s Service) resolveSeekPosition(ctx context.Context, selector string, arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "seek position required"}
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := parseDurationToMS(arg)
		if err != nil {
			return 0, err
		}
		status, err := s.Status(ctx, selector)
		if err != nil {
			return 0, err
		}
		pos := status.State.PositionMS + delta
		if pos < 0 {
			pos = 0
		}
		return pos, nil
	}
	return parseDurationToMS(arg)
}

func parseDurationToMS(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "duration required"}
	}
	if strings.HasSuffix(arg, "ms") || strings.HasSuffix(arg, "s") || strings.HasSuffix(arg, "m") || strings.HasSuffix(arg, "h") {
		dur, err := time.ParseDuration(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
		}
		return int64(dur / time.Millisecond), nil
	}
	value, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, &CLIError{Code: ExitUsage, Msg: "invalid duration"}
	}
	return value, nil
}
