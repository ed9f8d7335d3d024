package session

import (
	"context"
	"testing"

	"github.com/tome-audio/tome/internal/library"
	"github.com/tome-audio/tome/internal/player"
	"github.com/tome-audio/tome/pkg/tome"
)

type engineCall struct {
	op    string
	i64   int64
	f64   float64
	flag  bool
	text  string
	value int
}

type fakeEngine struct {
	calls []engineCall
	media player.Media
}

func (e *fakeEngine) record(call engineCall) {
	e.calls = append(e.calls, call)
}

func (e *fakeEngine) Prepare(media player.Media) error {
	e.media = media
	e.record(engineCall{op: "prepare", text: media.BookID})
	return nil
}

func (e *fakeEngine) Play() error {
	e.record(engineCall{op: "play"})
	return nil
}

func (e *fakeEngine) Pause(rewindMS int64) error {
	e.record(engineCall{op: "pause", i64: rewindMS})
	return nil
}

func (e *fakeEngine) Stop() error {
	e.record(engineCall{op: "stop"})
	return nil
}

func (e *fakeEngine) SeekTo(positionMS int64) error {
	e.record(engineCall{op: "seek", i64: positionMS})
	return nil
}

func (e *fakeEngine) SetSpeed(rate float64) error {
	e.record(engineCall{op: "speed", f64: rate})
	return nil
}

func (e *fakeEngine) Skip(direction player.Direction, amountMS int64) error {
	e.record(engineCall{op: "skip", value: int(direction), i64: amountMS})
	return nil
}

func (e *fakeEngine) Next() error {
	e.record(engineCall{op: "next"})
	return nil
}

func (e *fakeEngine) Previous(forceRestart bool) error {
	e.record(engineCall{op: "previous", flag: forceRestart})
	return nil
}

func (e *fakeEngine) PlayPause() error {
	e.record(engineCall{op: "playPause"})
	return nil
}

func (e *fakeEngine) SetPosition(uri string, positionMS int64) error {
	e.record(engineCall{op: "setPosition", text: uri, i64: positionMS})
	return nil
}

func (e *fakeEngine) SetSkipSilence(enabled bool) error {
	e.record(engineCall{op: "skipSilence", flag: enabled})
	return nil
}

func (e *fakeEngine) SetLoudnessGain(mb int) error {
	e.record(engineCall{op: "gain", value: mb})
	return nil
}

func (e *fakeEngine) Media() (player.Media, bool) {
	return e.media, len(e.media.Tracks) > 0
}

func (e *fakeEngine) ops() []string {
	out := make([]string, 0, len(e.calls))
	for _, call := range e.calls {
		out = append(out, call.op)
	}
	return out
}

func (e *fakeEngine) count(op string) int {
	n := 0
	for _, call := range e.calls {
		if call.op == op {
			n++
		}
	}
	return n
}

func (e *fakeEngine) last(t *testing.T) engineCall {
	t.Helper()
	if len(e.calls) == 0 {
		t.Fatalf("expected an engine call")
	}
	return e.calls[len(e.calls)-1]
}

type fakeLibrary struct {
	books   []library.Book
	touched []string
}

func (l *fakeLibrary) Books(ctx context.Context) ([]library.Book, error) {
	return l.books, nil
}

func (l *fakeLibrary) BookByID(ctx context.Context, id string) (library.Book, bool, error) {
	for _, book := range l.books {
		if book.ID == id {
			return book, true, nil
		}
	}
	return library.Book{}, false, nil
}

func (l *fakeLibrary) TouchPlayed(ctx context.Context, id string) error {
	l.touched = append(l.touched, id)
	return nil
}

type fakePrefs struct {
	current string
	writes  int
}

func (p *fakePrefs) CurrentBookID() (string, bool, error) {
	return p.current, p.current != "", nil
}

func (p *fakePrefs) SetCurrentBookID(id string) error {
	p.current = id
	p.writes++
	return nil
}

type fakeConnectivity struct {
	connected bool
}

func (c fakeConnectivity) Connected() bool { return c.connected }

func bookA() library.Book {
	return library.Book{ID: "tome:book:a", Title: "Ashes", Author: "Ann Author", Chapters: []library.Chapter{
		{Title: "One", URI: "file:///a/1.mp3"},
		{Title: "Two", URI: "file:///a/2.mp3"},
	}}
}

func bookB() library.Book {
	return library.Book{ID: "tome:book:b", Title: "Brine", Author: "Bo Writer", Chapters: []library.Chapter{
		{Title: "One", URI: "file:///b/1.mp3"},
	}}
}

type fixture struct {
	engine       *fakeEngine
	books        *fakeLibrary
	prefs        *fakePrefs
	connectivity *fakeConnectivity
	dispatcher   *Dispatcher
}

func newFixture(t *testing.T, strict bool, books ...library.Book) *fixture {
	t.Helper()
	f := &fixture{
		engine:       &fakeEngine{},
		books:        &fakeLibrary{books: books},
		prefs:        &fakePrefs{},
		connectivity: &fakeConnectivity{},
	}
	f.dispatcher = NewDispatcher(nil, f.engine, f.books, f.prefs, f.connectivity, Config{Strict: strict})
	return f
}

func (f *fixture) handle(t *testing.T, cmd Command) {
	t.Helper()
	if err := f.dispatcher.HandleCommand(context.Background(), cmd); err != nil {
		t.Fatalf("handle %s: %v", cmd.Type, err)
	}
}

func toggleCmd() Command {
	return Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionPlayPauseToggle}}
}

func TestPauseRewindsFixedAmount(t *testing.T) {
	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdPause})

	call := f.engine.last(t)
	if call.op != "pause" || call.i64 != PauseRewindMS {
		t.Fatalf("expected pause with rewind %d, got %+v", PauseRewindMS, call)
	}
}

func TestDirectTransportCommands(t *testing.T) {
	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdSeek, PositionMS: 1234})
	f.handle(t, Command{Type: tome.CmdSetSpeed, Rate: 1.5})
	f.handle(t, Command{Type: tome.CmdStop})

	ops := f.engine.ops()
	want := []string{"seek", "speed", "stop"}
	for i, op := range want {
		if ops[i] != op {
			t.Fatalf("expected %v, got %v", want, ops)
		}
	}
}

func TestTogglePreparesOnceForUnchangedTarget(t *testing.T) {
	f := newFixture(t, false, bookA())

	f.handle(t, toggleCmd())
	f.handle(t, toggleCmd())

	if got := f.engine.count("prepare"); got != 1 {
		t.Fatalf("expected exactly one prepare, got %d", got)
	}
	if got := f.engine.count("playPause"); got != 2 {
		t.Fatalf("expected two toggles, got %d", got)
	}
}

func TestToggleWithNoBooksIsToggleOnly(t *testing.T) {
	f := newFixture(t, false)

	f.handle(t, toggleCmd())

	if got := f.engine.count("prepare"); got != 0 {
		t.Fatalf("expected no prepare without books, got %d", got)
	}
	if got := f.engine.count("playPause"); got != 1 {
		t.Fatalf("expected toggle, got %d", got)
	}
}

func TestTogglePreparesFirstBookWhenNothingSelected(t *testing.T) {
	f := newFixture(t, false, bookB())

	f.handle(t, toggleCmd())

	if f.engine.count("prepare") != 1 || f.engine.media.BookID != "tome:book:b" {
		t.Fatalf("expected prepare of first available book")
	}
	ops := f.engine.ops()
	if ops[len(ops)-1] != "playPause" {
		t.Fatalf("expected toggle after prepare, got %v", ops)
	}
}

func TestTogglePrepareTargetDeletedConcurrently(t *testing.T) {
	f := newFixture(t, false)
	f.prefs.current = "tome:book:gone"

	f.handle(t, toggleCmd())

	if got := f.engine.count("prepare"); got != 0 {
		t.Fatalf("expected no prepare for missing book, got %d", got)
	}
}

func TestPlayFromIDRecognized(t *testing.T) {
	f := newFixture(t, false, bookA(), bookB())

	f.handle(t, Command{Type: tome.CmdPlayFromID, ID: "tome:book:b"})

	if f.prefs.current != "tome:book:b" || f.prefs.writes != 1 {
		t.Fatalf("expected preference write for book b")
	}
	ops := f.engine.ops()
	if len(ops) != 2 || ops[0] != "prepare" || ops[1] != "play" {
		t.Fatalf("expected prepare then play, got %v", ops)
	}
	if f.engine.media.BookID != "tome:book:b" {
		t.Fatalf("expected book b loaded, got %q", f.engine.media.BookID)
	}

	// A later toggle sees marker=b and performs no further prepare.
	f.handle(t, toggleCmd())
	if f.engine.count("prepare") != 1 {
		t.Fatalf("expected exactly one prepare of book b, got %d", f.engine.count("prepare"))
	}
}

func TestPlayFromIDUnknownBook(t *testing.T) {
	f := newFixture(t, false, bookA())

	f.handle(t, Command{Type: tome.CmdPlayFromID, ID: "tome:book:ghost"})

	if f.prefs.writes != 0 {
		t.Fatalf("expected no preference write for an unknown book")
	}
	if len(f.engine.calls) != 0 {
		t.Fatalf("expected no engine call, got %v", f.engine.ops())
	}
}

func TestToggleChapterlessBookRetriesPrepare(t *testing.T) {
	f := newFixture(t, false, library.Book{ID: "tome:book:draft", Title: "Draft"})

	f.handle(t, toggleCmd())
	if got := f.engine.count("prepare"); got != 0 {
		t.Fatalf("expected no prepare for a chapterless book, got %d", got)
	}

	// Chapters arrive later, e.g. from a feed refresh; the marker must
	// not have been burned by the empty load.
	f.books.books[0].Chapters = []library.Chapter{{Title: "One", URI: "file:///d/1.mp3"}}
	f.handle(t, toggleCmd())
	if f.engine.count("prepare") != 1 || f.engine.media.BookID != "tome:book:draft" {
		t.Fatalf("expected prepare once chapters exist, got %v", f.engine.ops())
	}
}

func TestPlayFromIDUnrecognized(t *testing.T) {
	f := newFixture(t, false, bookA())

	f.handle(t, Command{Type: tome.CmdPlayFromID, ID: "spotify:track:xyz"})

	if f.prefs.writes != 0 {
		t.Fatalf("expected no preference write")
	}
	if len(f.engine.calls) != 0 {
		t.Fatalf("expected no engine call, got %v", f.engine.ops())
	}
}

func TestSkipToChapterOutOfRange(t *testing.T) {
	f := newFixture(t, false, bookA())
	f.handle(t, toggleCmd())
	base := len(f.engine.calls)

	for _, index := range []int{-1, 2, 100} {
		f.handle(t, Command{Type: tome.CmdSkipToChapter, Index: index})
	}
	if len(f.engine.calls) != base {
		t.Fatalf("expected no engine calls for out-of-range indices")
	}
}

func TestSkipToChapterNoBookLoaded(t *testing.T) {
	f := newFixture(t, false)

	f.handle(t, Command{Type: tome.CmdSkipToChapter, Index: 0})

	if len(f.engine.calls) != 0 {
		t.Fatalf("expected no engine calls without a loaded book")
	}
}

func TestSkipToChapterRepositionsAndPlays(t *testing.T) {
	f := newFixture(t, false, bookA())
	f.handle(t, toggleCmd())

	f.handle(t, Command{Type: tome.CmdSkipToChapter, Index: 1})

	calls := f.engine.calls
	setPos := calls[len(calls)-2]
	if setPos.op != "setPosition" || setPos.text != "file:///a/2.mp3" || setPos.i64 != 0 {
		t.Fatalf("expected reposition to chapter 2 offset 0, got %+v", setPos)
	}
	if calls[len(calls)-1].op != "play" {
		t.Fatalf("expected play after reposition")
	}
}

func TestSkipNextGating(t *testing.T) {
	// Detached: next aliases to a forward skip.
	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdSkipNext})
	call := f.engine.last(t)
	if call.op != "skip" || call.value != int(player.Forward) || call.i64 != SkipAmountMS {
		t.Fatalf("expected forward skip, got %+v", call)
	}

	// Attached: next uses the native track primitive.
	f = newFixture(t, false)
	f.connectivity.connected = true
	f.handle(t, Command{Type: tome.CmdSkipNext})
	if f.engine.last(t).op != "next" {
		t.Fatalf("expected native next, got %+v", f.engine.last(t))
	}
}

func TestSkipPrevGating(t *testing.T) {
	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdSkipPrev})
	call := f.engine.last(t)
	if call.op != "skip" || call.value != int(player.Rewind) {
		t.Fatalf("expected rewind skip, got %+v", call)
	}

	f = newFixture(t, false)
	f.connectivity.connected = true
	f.handle(t, Command{Type: tome.CmdSkipPrev})
	call = f.engine.last(t)
	if call.op != "previous" || !call.flag {
		t.Fatalf("expected force-restart previous, got %+v", call)
	}
}

func TestForcedPreviousIgnoresConnectivity(t *testing.T) {
	for _, connected := range []bool{false, true} {
		f := newFixture(t, false)
		f.connectivity.connected = connected

		f.handle(t, Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionForcedPrevious}})

		call := f.engine.last(t)
		if call.op != "previous" || !call.flag {
			t.Fatalf("connected=%v: expected force-restart previous, got %+v", connected, call)
		}
	}
}

func TestForcedNextIgnoresConnectivity(t *testing.T) {
	for _, connected := range []bool{false, true} {
		f := newFixture(t, false)
		f.connectivity.connected = connected

		f.handle(t, Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionForcedNext}})

		if f.engine.last(t).op != "next" {
			t.Fatalf("connected=%v: expected native next", connected)
		}
	}
}

func TestActionSkipSilence(t *testing.T) {
	f := newFixture(t, false)
	on := true

	f.handle(t, Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionSkipSilence, Value: &on}})

	call := f.engine.last(t)
	if call.op != "skipSilence" || !call.flag {
		t.Fatalf("expected skip silence on, got %+v", call)
	}
}

func TestActionSetLoudnessGain(t *testing.T) {
	f := newFixture(t, false)
	mb := -150

	f.handle(t, Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionSetLoudnessGain, MB: &mb}})

	call := f.engine.last(t)
	if call.op != "gain" || call.value != -150 {
		t.Fatalf("expected gain -150, got %+v", call)
	}
}

func TestActionSetPosition(t *testing.T) {
	f := newFixture(t, false)
	uri := "file:///a/2.mp3"
	offset := int64(42000)

	f.handle(t, Command{Type: tome.CmdAction, Action: tome.ActionBody{Name: tome.ActionSetPosition, URI: &uri, Time: &offset}})

	call := f.engine.last(t)
	if call.op != "setPosition" || call.text != uri || call.i64 != offset {
		t.Fatalf("expected set position, got %+v", call)
	}
}

func TestActionSetPositionMissingTime(t *testing.T) {
	uri := "file:///a/2.mp3"
	action := tome.ActionBody{Name: tome.ActionSetPosition, URI: &uri}

	// Release: logged no-op.
	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdAction, Action: action})
	if len(f.engine.calls) != 0 {
		t.Fatalf("expected no engine call")
	}

	// Strict: contract violation surfaces.
	f = newFixture(t, true)
	err := f.dispatcher.HandleCommand(context.Background(), Command{Type: tome.CmdAction, Action: action})
	if err == nil {
		t.Fatalf("expected strict-mode error")
	}
}

func TestUnknownActionStrictness(t *testing.T) {
	action := tome.ActionBody{Name: "teleport"}

	f := newFixture(t, false)
	f.handle(t, Command{Type: tome.CmdAction, Action: action})
	if len(f.engine.calls) != 0 {
		t.Fatalf("expected no engine call")
	}

	f = newFixture(t, true)
	err := f.dispatcher.HandleCommand(context.Background(), Command{Type: tome.CmdAction, Action: action})
	if err == nil {
		t.Fatalf("expected strict-mode error")
	}
}

func TestPlayFromSearchMatchesTitle(t *testing.T) {
	f := newFixture(t, false, bookA(), bookB())

	f.handle(t, Command{Type: tome.CmdPlayFromSearch, Query: "brine"})

	if f.prefs.current != "tome:book:b" {
		t.Fatalf("expected book b selected, got %q", f.prefs.current)
	}
	if f.engine.count("prepare") != 1 || f.engine.count("play") != 1 {
		t.Fatalf("expected prepare then play, got %v", f.engine.ops())
	}
}

func TestPlayFromSearchEmptyQueryPlaysMostRecent(t *testing.T) {
	f := newFixture(t, false, bookA(), bookB())

	f.handle(t, Command{Type: tome.CmdPlayFromSearch, Query: ""})

	if f.prefs.current != "tome:book:a" {
		t.Fatalf("expected most recent book, got %q", f.prefs.current)
	}
}

func TestPlayFromSearchNoBooks(t *testing.T) {
	f := newFixture(t, false)

	f.handle(t, Command{Type: tome.CmdPlayFromSearch, Query: "anything"})

	if len(f.engine.calls) != 0 || f.prefs.writes != 0 {
		t.Fatalf("expected no side effects")
	}
}

func TestPlanPrepare(t *testing.T) {
	if _, load := planPrepare("", ""); load {
		t.Fatalf("empty target must not load")
	}
	if _, load := planPrepare("a", "a"); load {
		t.Fatalf("unchanged target must not load")
	}
	marker, load := planPrepare("a", "b")
	if !load || marker != "b" {
		t.Fatalf("changed target must load, marker=%q", marker)
	}
	marker, load = planPrepare("", "b")
	if !load || marker != "b" {
		t.Fatalf("unset marker must load, marker=%q", marker)
	}
}
