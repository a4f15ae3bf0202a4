package view

import (
	"fmt"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const sampleRate = beep.SampleRate(44100)

// Cue plays a short sound. Implementations must not block the loop.
type Cue interface {
	Play()
	Close()
}

// NopCue is used when sound is disabled or the device is unavailable.
type NopCue struct{}

func (NopCue) Play() {}
func (NopCue) Close() {}

// Beeper plays a short sine tone on the default output device.
type Beeper struct {
	freq     float64
	duration time.Duration
}

// NewBeeper opens the speaker. Callers fall back to NopCue on error.
func NewBeeper(freq float64, duration time.Duration) (*Beeper, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return &Beeper{freq: freq, duration: duration}, nil
}

// Tone returns the cue's streamer, bounded to its duration.
func (b *Beeper) Tone() (beep.Streamer, error) {
	sine, err := generators.SineTone(sampleRate, b.freq)
	if err != nil {
		return nil, err
	}
	return beep.Take(sampleRate.N(b.duration), sine), nil
}

func (b *Beeper) Play() {
	tone, err := b.Tone()
	if err != nil {
		return
	}
	speaker.Play(tone)
}

func (b *Beeper) Close() { speaker.Close() }
