package player

import "errors"

// Driver executes playback actions against the audio backend.
type Driver interface {
	Load(uri string) error
	Play() error
	Pause() error
	Stop() error
	SeekTo(positionMS int64) error
	SetRate(rate float64) error
	SetSkipSilence(enabled bool) error
	SetGain(mb int) error
}

// ErrUnsupported indicates driver capability is missing.
var ErrUnsupported = errors.New("unsupported")
