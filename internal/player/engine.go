package player

import (
	"time"

	"github.com/tome-audio/tome/pkg/tome"
)

// RestartGraceMS is how far into a track playback may sit before a
// force-restart previous rewinds the current track instead of moving
// to the one before it.
const RestartGraceMS = 2000

// Media is the engine's loadable representation of a book.
type Media struct {
	BookID string
	Title  string
	Tracks []Track
}

// Track is a single playable resource within a Media.
type Track struct {
	URI        string
	Title      string
	DurationMS int64
}

// Direction selects the sense of a relative skip.
type Direction int

// Skip directions.
const (
	Forward Direction = 1
	Rewind  Direction = -1
)

// Engine is the sole owner of playback state. It is not safe for
// unsynchronized concurrent use; callers serialize command delivery.
type Engine struct {
	driver Driver

	media       Media
	loaded      bool
	track       int
	positionMS  int64
	rate        float64
	playing     bool
	skipSilence bool
	gainMB      int
	version     int64
}

// NewEngine creates an engine over a driver.
func NewEngine(driver Driver) *Engine {
	return &Engine{driver: driver, rate: 1.0}
}

// Prepare loads and pre-buffers media without starting playback.
func (e *Engine) Prepare(media Media) error {
	if len(media.Tracks) == 0 {
		return nil
	}
	if err := e.driver.Load(media.Tracks[0].URI); err != nil {
		return err
	}
	e.media = media
	e.loaded = true
	e.track = 0
	e.positionMS = 0
	e.version++
	return nil
}

// Play starts or resumes playback of the loaded media.
func (e *Engine) Play() error {
	if !e.loaded {
		return nil
	}
	if err := e.driver.Play(); err != nil {
		return err
	}
	e.playing = true
	e.version++
	return nil
}

// Pause pauses playback, rewinding by rewindMS to compensate for
// listener reaction lag.
func (e *Engine) Pause(rewindMS int64) error {
	if !e.loaded {
		return nil
	}
	if rewindMS > 0 {
		pos := e.positionMS - rewindMS
		if pos < 0 {
			pos = 0
		}
		if err := e.driver.SeekTo(pos); err != nil {
			return err
		}
		e.positionMS = pos
	}
	if err := e.driver.Pause(); err != nil {
		return err
	}
	e.playing = false
	e.version++
	return nil
}

// Stop halts playback and resets the position.
func (e *Engine) Stop() error {
	if err := e.driver.Stop(); err != nil {
		return err
	}
	e.playing = false
	e.positionMS = 0
	e.version++
	return nil
}

// SeekTo moves to an absolute position within the current track.
func (e *Engine) SeekTo(positionMS int64) error {
	if !e.loaded {
		return nil
	}
	if positionMS < 0 {
		positionMS = 0
	}
	if err := e.driver.SeekTo(positionMS); err != nil {
		return err
	}
	e.positionMS = positionMS
	e.version++
	return nil
}

// SetSpeed sets the playback rate.
func (e *Engine) SetSpeed(rate float64) error {
	if rate <= 0 {
		return nil
	}
	if err := e.driver.SetRate(rate); err != nil {
		return err
	}
	e.rate = rate
	e.version++
	return nil
}

// Skip seeks relative to the current position.
func (e *Engine) Skip(direction Direction, amountMS int64) error {
	if !e.loaded {
		return nil
	}
	pos := e.positionMS + int64(direction)*amountMS
	if pos < 0 {
		pos = 0
	}
	if max := e.currentTrackDuration(); max > 0 && pos > max {
		pos = max
	}
	return e.SeekTo(pos)
}

// Next advances to the next track. At the end of the media it is a
// no-op.
func (e *Engine) Next() error {
	if !e.loaded || e.track+1 >= len(e.media.Tracks) {
		return nil
	}
	return e.jumpTo(e.track+1, 0)
}

// Previous moves to the previous track. With forceRestart, a track
// progressed beyond the restart grace restarts from its beginning
// instead.
func (e *Engine) Previous(forceRestart bool) error {
	if !e.loaded {
		return nil
	}
	if forceRestart && e.positionMS > RestartGraceMS {
		return e.SeekTo(0)
	}
	if e.track == 0 {
		return e.SeekTo(0)
	}
	return e.jumpTo(e.track-1, 0)
}

// PlayPause flips the desired-playing flag and drives the engine to
// match. It does not inspect actual backend state.
func (e *Engine) PlayPause() error {
	if e.playing {
		return e.Pause(0)
	}
	return e.Play()
}

// SetPosition repositions to an exact track URI and offset. Unknown
// URIs are ignored.
func (e *Engine) SetPosition(uri string, positionMS int64) error {
	if !e.loaded {
		return nil
	}
	for i, track := range e.media.Tracks {
		if track.URI == uri {
			return e.jumpTo(i, positionMS)
		}
	}
	return nil
}

// SetSkipSilence sets the silence-skipping mode.
func (e *Engine) SetSkipSilence(enabled bool) error {
	if err := e.driver.SetSkipSilence(enabled); err != nil {
		return err
	}
	e.skipSilence = enabled
	e.version++
	return nil
}

// SetLoudnessGain sets the output gain in millibels.
func (e *Engine) SetLoudnessGain(mb int) error {
	if err := e.driver.SetGain(mb); err != nil {
		return err
	}
	e.gainMB = mb
	e.version++
	return nil
}

// Media returns the currently loaded media and whether any is loaded.
func (e *Engine) Media() (Media, bool) {
	return e.media, e.loaded
}

// Playing reports the desired-playing flag.
func (e *Engine) Playing() bool {
	return e.playing
}

// Snapshot renders the engine state for the retained state topic.
func (e *Engine) Snapshot() tome.PlayerState {
	state := tome.PlayerState{
		Status:       "stopped",
		Chapter:      e.track,
		PositionMS:   e.positionMS,
		Rate:         e.rate,
		SkipSilence:  e.skipSilence,
		GainMB:       e.gainMB,
		StateVersion: e.version,
		TS:           time.Now().Unix(),
	}
	if e.loaded {
		state.Status = "paused"
		state.BookID = e.media.BookID
		state.BookTitle = e.media.Title
		if e.track < len(e.media.Tracks) {
			state.ChapterTitle = e.media.Tracks[e.track].Title
		}
	}
	if e.playing {
		state.Status = "playing"
	}
	return state
}

func (e *Engine) jumpTo(track int, positionMS int64) error {
	if err := e.driver.Load(e.media.Tracks[track].URI); err != nil {
		return err
	}
	e.track = track
	e.positionMS = 0
	if positionMS > 0 {
		if err := e.driver.SeekTo(positionMS); err != nil {
			return err
		}
		e.positionMS = positionMS
	}
	e.version++
	if e.playing {
		return e.driver.Play()
	}
	return nil
}

func (e *Engine) currentTrackDuration() int64 {
	if !e.loaded || e.track >= len(e.media.Tracks) {
		return 0
	}
	return e.media.Tracks[e.track].DurationMS
}
