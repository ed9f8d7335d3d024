//go:build gstreamer

package player

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
)

// DefaultPipeline is the playbin template used when config leaves the
// pipeline empty. Placeholders: {url} {rate} {skip_silence} {volume}.
const DefaultPipeline = "uridecodebin uri={url} ! audioconvert ! {skip_silence} scaletempo ! pitch tempo={rate} ! volume volume={volume} ! autoaudiosink"

// GstDriver implements a GStreamer-backed playback driver built from a
// pipeline template. Rate and skip-silence changes rebuild the pipeline
// at the remembered position.
type GstDriver struct {
	mu          sync.Mutex
	template    string
	uri         string
	positionMS  int64
	rate        float64
	skipSilence bool
	gainMB      int
	playing     bool
	current     *gst.Element
}

var gstInitOnce sync.Once

// NewGstDriver creates a GStreamer driver from a pipeline template.
func NewGstDriver(template string) (*GstDriver, error) {
	if strings.TrimSpace(template) == "" {
		template = DefaultPipeline
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &GstDriver{template: template, rate: 1.0}, nil
}

// Load builds a paused pipeline for the URI, pre-buffering it.
func (d *GstDriver) Load(uri string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.uri = uri
	d.positionMS = 0
	return d.rebuildLocked(gst.StatePaused)
}

// Play starts playback of the loaded pipeline.
func (d *GstDriver) Play() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("nothing loaded")
	}
	if err := d.current.SetState(gst.StatePlaying); err != nil {
		return err
	}
	d.playing = true
	return nil
}

// Pause pauses the loaded pipeline.
func (d *GstDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("nothing loaded")
	}
	if err := d.current.SetState(gst.StatePaused); err != nil {
		return err
	}
	d.playing = false
	return nil
}

// Stop tears down the pipeline.
func (d *GstDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil {
		_ = d.current.SetState(gst.StateNull)
		d.current = nil
	}
	d.playing = false
	d.positionMS = 0
	return nil
}

// SeekTo seeks within the loaded pipeline.
func (d *GstDriver) SeekTo(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current == nil {
		return errors.New("nothing loaded")
	}
	positionNS := positionMS * int64(time.Millisecond)
	if err := d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS); err != nil {
		return err
	}
	d.positionMS = positionMS
	return nil
}

// SetRate changes the playback rate by rebuilding the pipeline.
func (d *GstDriver) SetRate(rate float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rate = rate
	return d.reapplyLocked()
}

// SetSkipSilence toggles the silence-removal stage of the pipeline.
func (d *GstDriver) SetSkipSilence(enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.skipSilence = enabled
	return d.reapplyLocked()
}

// SetGain applies output gain in millibels to the pipeline volume.
func (d *GstDriver) SetGain(mb int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gainMB = mb
	if d.current != nil {
		_ = d.current.SetProperty("volume", d.volumeLocked())
	}
	return nil
}

func (d *GstDriver) reapplyLocked() error {
	if d.current == nil {
		return nil
	}
	state := gst.StatePaused
	if d.playing {
		state = gst.StatePlaying
	}
	position := d.positionMS
	if err := d.rebuildLocked(state); err != nil {
		return err
	}
	if position > 0 {
		positionNS := position * int64(time.Millisecond)
		if err := d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS); err != nil {
			return err
		}
		d.positionMS = position
	}
	return nil
}

func (d *GstDriver) rebuildLocked(state gst.State) error {
	if d.uri == "" {
		return errors.New("no uri")
	}
	if d.current != nil {
		_ = d.current.SetState(gst.StateNull)
		d.current = nil
	}

	silence := ""
	if d.skipSilence {
		silence = "removesilence remove=true !"
	}
	pipeline := d.template
	pipeline = strings.ReplaceAll(pipeline, "{url}", d.uri)
	pipeline = strings.ReplaceAll(pipeline, "{rate}", fmt.Sprintf("%0.2f", d.rate))
	pipeline = strings.ReplaceAll(pipeline, "{skip_silence}", silence)
	pipeline = strings.ReplaceAll(pipeline, "{volume}", fmt.Sprintf("%0.4f", d.volumeLocked()))

	el, err := gst.ParseLaunch(pipeline)
	if err != nil {
		return err
	}
	if err := el.SetState(state); err != nil {
		return err
	}
	d.current = el
	d.positionMS = 0
	return nil
}

func (d *GstDriver) volumeLocked() float64 {
	return math.Pow(10, float64(d.gainMB)/2000)
}
