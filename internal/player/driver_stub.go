//go:build !gstreamer

package player

import "errors"

var errNoGst = errors.New("gstreamer build tag not enabled")

// DefaultPipeline is the playbin template used when config leaves the
// pipeline empty. Placeholders: {url} {rate} {skip_silence} {volume}.
const DefaultPipeline = "uridecodebin uri={url} ! audioconvert ! {skip_silence} scaletempo ! pitch tempo={rate} ! volume volume={volume} ! autoaudiosink"

// GstDriver is a stub when the gstreamer tag is not enabled.
type GstDriver struct{}

// NewGstDriver returns an error when the gstreamer build tag is missing.
func NewGstDriver(template string) (*GstDriver, error) {
	return nil, errNoGst
}

func (d *GstDriver) Load(uri string) error { return errNoGst }

func (d *GstDriver) Play() error { return errNoGst }

func (d *GstDriver) Pause() error { return errNoGst }

func (d *GstDriver) Stop() error { return errNoGst }

func (d *GstDriver) SeekTo(positionMS int64) error { return errNoGst }

func (d *GstDriver) SetRate(rate float64) error { return errNoGst }

func (d *GstDriver) SetSkipSilence(enabled bool) error { return errNoGst }

func (d *GstDriver) SetGain(mb int) error { return errNoGst }
