package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tome-audio/tome/internal/library"
	"github.com/tome-audio/tome/internal/player"
	"github.com/tome-audio/tome/pkg/tome"
)

// Fixed playback policies. Pause rewinds slightly to compensate for
// listener reaction lag; skips jump a flat interval.
const (
	PauseRewindMS = 2000
	SkipAmountMS  = 30000
)

// Engine is the playback engine facade consumed by the dispatcher.
type Engine interface {
	Prepare(media player.Media) error
	Play() error
	Pause(rewindMS int64) error
	Stop() error
	SeekTo(positionMS int64) error
	SetSpeed(rate float64) error
	Skip(direction player.Direction, amountMS int64) error
	Next() error
	Previous(forceRestart bool) error
	PlayPause() error
	SetPosition(uri string, positionMS int64) error
	SetSkipSilence(enabled bool) error
	SetLoudnessGain(mb int) error
	Media() (player.Media, bool)
}

// Library exposes the book repository operations the dispatcher needs.
type Library interface {
	Books(ctx context.Context) ([]library.Book, error)
	BookByID(ctx context.Context, id string) (library.Book, bool, error)
	TouchPlayed(ctx context.Context, id string) error
}

// Prefs persists the current book selection.
type Prefs interface {
	CurrentBookID() (string, bool, error)
	SetCurrentBookID(id string) error
}

// Connectivity reports whether a companion control surface is attached.
type Connectivity interface {
	Connected() bool
}

// Config tunes dispatcher behavior.
type Config struct {
	// Strict turns contract violations (unknown custom action, missing
	// payload field) into returned errors instead of logged no-ops.
	Strict bool
}

// Dispatcher routes control commands onto the playback engine. All
// failures except strict-mode contract violations are absorbed as a
// log line plus no-op: the control surface must never crash the host
// session.
type Dispatcher struct {
	log          *zap.Logger
	engine       Engine
	books        Library
	prefs        Prefs
	connectivity Connectivity
	strict       bool

	// mu serializes command handling; the prepare-then-act sequence
	// reads and writes prepared.
	mu       sync.Mutex
	prepared string
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(log *zap.Logger, engine Engine, books Library, prefs Prefs, connectivity Connectivity, cfg Config) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		log:          log,
		engine:       engine,
		books:        books,
		prefs:        prefs,
		connectivity: connectivity,
		strict:       cfg.Strict,
	}
}

// HandleCommand executes one control command. The returned error is
// nil except for strict-mode contract violations.
func (d *Dispatcher) HandleCommand(ctx context.Context, cmd Command) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch cmd.Type {
	case tome.CmdPlay:
		d.absorb("play", d.engine.Play())
	case tome.CmdPause:
		d.absorb("pause", d.engine.Pause(PauseRewindMS))
	case tome.CmdStop:
		d.absorb("stop", d.engine.Stop())
	case tome.CmdSeek:
		d.absorb("seek", d.engine.SeekTo(cmd.PositionMS))
	case tome.CmdSetSpeed:
		d.absorb("set speed", d.engine.SetSpeed(cmd.Rate))
	case tome.CmdSkipForward:
		d.absorb("skip forward", d.engine.Skip(player.Forward, SkipAmountMS))
	case tome.CmdSkipRewind:
		d.absorb("skip rewind", d.engine.Skip(player.Rewind, SkipAmountMS))
	case tome.CmdSkipNext:
		skipPolicyFor(d.connectivity.Connected()).next(d)
	case tome.CmdSkipPrev:
		skipPolicyFor(d.connectivity.Connected()).previous(d)
	case tome.CmdSkipToChapter:
		d.skipToChapter(cmd.Index)
	case tome.CmdPlayFromID:
		d.playFromID(ctx, cmd.ID)
	case tome.CmdPlayFromSearch:
		d.playFromSearch(ctx, cmd.Query, cmd.Extras)
	case tome.CmdAction:
		return d.handleAction(ctx, cmd.Action)
	default:
		if d.strict {
			return fmt.Errorf("unknown command type %q", cmd.Type)
		}
		d.log.Warn("unknown command type", zap.String("type", cmd.Type))
	}
	return nil
}

// skipToChapter repositions to the start of chapter index within the
// loaded book. Out-of-range indices and a missing book are no-ops.
func (d *Dispatcher) skipToChapter(index int) {
	media, ok := d.engine.Media()
	if !ok || index < 0 || index >= len(media.Tracks) {
		return
	}
	d.absorb("skip to chapter", d.engine.SetPosition(media.Tracks[index].URI, 0))
	d.absorb("skip to chapter", d.engine.Play())
}

func (d *Dispatcher) playFromID(ctx context.Context, id string) {
	ref := ParseRef(id)
	if ref.Kind != RefBook {
		d.log.Info("unrecognized media id", zap.String("id", id))
		return
	}
	book, found, err := d.books.BookByID(ctx, ref.BookID)
	if err != nil {
		d.absorb("load book", err)
		return
	}
	if !found {
		d.log.Info("unknown book id", zap.String("id", id))
		return
	}
	if err := d.prefs.SetCurrentBookID(book.ID); err != nil {
		d.absorb("persist current book", err)
		return
	}
	d.prepareBook(ctx, book)
	d.absorb("touch played", d.books.TouchPlayed(ctx, book.ID))
	d.absorb("play", d.engine.Play())
}

func (d *Dispatcher) playFromSearch(ctx context.Context, query string, extras map[string]string) {
	intent := InterpretSearch(query, extras)

	books, err := d.books.Books(ctx)
	if err != nil {
		d.absorb("list books", err)
		return
	}
	book, ok := matchBook(intent, books)
	if !ok {
		d.log.Info("no book matches search", zap.String("query", query))
		return
	}
	if err := d.prefs.SetCurrentBookID(book.ID); err != nil {
		d.absorb("persist current book", err)
		return
	}
	d.prepareBook(ctx, book)
	d.absorb("touch played", d.books.TouchPlayed(ctx, book.ID))
	d.absorb("play", d.engine.Play())
}

// Outcome classifies custom-action dispatch.
type Outcome int

// Custom-action outcomes.
const (
	OutcomeHandled Outcome = iota
	OutcomeUnrecognized
	OutcomeBadPayload
)

func (d *Dispatcher) handleAction(ctx context.Context, body tome.ActionBody) error {
	switch d.dispatchAction(ctx, body) {
	case OutcomeHandled:
		return nil
	case OutcomeUnrecognized:
		if d.strict {
			return fmt.Errorf("unknown custom action %q", body.Name)
		}
		d.log.Warn("unknown custom action", zap.String("action", body.Name))
	case OutcomeBadPayload:
		if d.strict {
			return fmt.Errorf("malformed payload for custom action %q", body.Name)
		}
		d.log.Warn("malformed custom action payload", zap.String("action", body.Name))
	}
	return nil
}

func (d *Dispatcher) dispatchAction(ctx context.Context, body tome.ActionBody) Outcome {
	switch body.Name {
	case tome.ActionPlayPauseToggle:
		d.prepareCurrent(ctx)
		d.absorb("play pause", d.engine.PlayPause())
	case tome.ActionSkipSilence:
		if body.Value == nil {
			return OutcomeBadPayload
		}
		d.absorb("skip silence", d.engine.SetSkipSilence(*body.Value))
	case tome.ActionSetLoudnessGain:
		if body.MB == nil {
			return OutcomeBadPayload
		}
		d.absorb("loudness gain", d.engine.SetLoudnessGain(*body.MB))
	case tome.ActionSetPosition:
		if body.URI == nil || body.Time == nil {
			return OutcomeBadPayload
		}
		d.absorb("set position", d.engine.SetPosition(*body.URI, *body.Time))
	case tome.ActionForcedPrevious:
		d.absorb("forced previous", d.engine.Previous(true))
	case tome.ActionForcedNext:
		d.absorb("forced next", d.engine.Next())
	case tome.ActionNext:
		skipPolicyFor(d.connectivity.Connected()).next(d)
	case tome.ActionPrevious:
		skipPolicyFor(d.connectivity.Connected()).previous(d)
	case tome.ActionFastForward:
		d.absorb("fast forward", d.engine.Skip(player.Forward, SkipAmountMS))
	case tome.ActionRewind:
		d.absorb("rewind", d.engine.Skip(player.Rewind, SkipAmountMS))
	default:
		return OutcomeUnrecognized
	}
	return OutcomeHandled
}

// planPrepare decides whether a prepare is needed given the current
// marker and the resolved target. Pure; the caller performs the engine
// call and commits the new marker.
func planPrepare(marker string, target string) (string, bool) {
	if target == "" || marker == target {
		return marker, false
	}
	return target, true
}

// prepareCurrent idempotently ensures the engine has the current book
// loaded. Repeated calls under an unchanged target perform no engine
// call. Absence of any book, or a book deleted between resolution and
// lookup, ends the operation silently.
func (d *Dispatcher) prepareCurrent(ctx context.Context) {
	target, ok, err := d.prefs.CurrentBookID()
	if err != nil {
		d.absorb("read current book", err)
		return
	}
	if !ok {
		books, err := d.books.Books(ctx)
		if err != nil {
			d.absorb("list books", err)
			return
		}
		if len(books) == 0 {
			return
		}
		target = books[0].ID
	}

	if _, load := planPrepare(d.prepared, target); !load {
		return
	}
	book, found, err := d.books.BookByID(ctx, target)
	if err != nil {
		d.absorb("load book", err)
		return
	}
	if !found {
		return
	}
	d.prepareBook(ctx, book)
}

// prepareBook loads a book into the engine and commits the marker. A
// chapterless book leaves the marker unset so a later attempt retries
// once chapters exist.
func (d *Dispatcher) prepareBook(ctx context.Context, book library.Book) {
	marker, load := planPrepare(d.prepared, book.ID)
	if !load {
		return
	}
	media := MediaFromBook(book)
	if len(media.Tracks) == 0 {
		return
	}
	if err := d.engine.Prepare(media); err != nil {
		d.absorb("prepare", err)
		return
	}
	d.prepared = marker
}

// MediaFromBook converts a book record into the engine's loadable
// representation.
func MediaFromBook(book library.Book) player.Media {
	tracks := make([]player.Track, 0, len(book.Chapters))
	for _, chapter := range book.Chapters {
		tracks = append(tracks, player.Track{
			URI:        chapter.URI,
			Title:      chapter.Title,
			DurationMS: chapter.DurationMS,
		})
	}
	return player.Media{BookID: book.ID, Title: book.Title, Tracks: tracks}
}

func (d *Dispatcher) absorb(op string, err error) {
	if err != nil {
		d.log.Warn("playback operation failed", zap.String("op", op), zap.Error(err))
	}
}

// skipPolicy is the two-variant strategy behind connectivity-gated
// next/previous.
type skipPolicy interface {
	next(d *Dispatcher)
	previous(d *Dispatcher)
}

// attachedSkip applies when a companion surface is connected: use the
// engine's native track navigation, with previous restarting a track
// already in progress.
type attachedSkip struct{}

func (attachedSkip) next(d *Dispatcher) {
	d.absorb("next", d.engine.Next())
}

func (attachedSkip) previous(d *Dispatcher) {
	d.absorb("previous", d.engine.Previous(true))
}

// detachedSkip applies when no companion is connected: alias next and
// previous to relative skips.
type detachedSkip struct{}

func (detachedSkip) next(d *Dispatcher) {
	d.absorb("next", d.engine.Skip(player.Forward, SkipAmountMS))
}

func (detachedSkip) previous(d *Dispatcher) {
	d.absorb("previous", d.engine.Skip(player.Rewind, SkipAmountMS))
}

func skipPolicyFor(connected bool) skipPolicy {
	if connected {
		return attachedSkip{}
	}
	return detachedSkip{}
}
