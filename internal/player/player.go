// Package player provides blocking PCM playback on top of oto. One Player
// owns the process-wide audio context; read-aloud tasks acquire it as their
// audio focus for the duration of a task.
package player

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// pollInterval is how often playback completion is checked.
const pollInterval = 10 * time.Millisecond

// Player wraps a ready oto context for 16-bit little-endian PCM output.
type Player struct {
	mu         sync.Mutex
	ctx        *oto.Context
	sampleRate int
	channels   int
}

// New initializes the audio context and waits for the device to become
// ready.
func New(sampleRate, channels int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	<-ready

	log.Debug("audio context ready", "sampleRate", sampleRate, "channels", channels)
	return &Player{ctx: ctx, sampleRate: sampleRate, channels: channels}, nil
}

// Play blocks until the PCM data has been played to completion.
func (p *Player) Play(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	p.mu.Lock()
	pl := p.ctx.NewPlayer(bytes.NewReader(pcm))
	p.mu.Unlock()

	pl.Play()
	for pl.IsPlaying() {
		time.Sleep(pollInterval)
	}
	if err := pl.Close(); err != nil {
		return fmt.Errorf("closing audio player: %w", err)
	}
	return nil
}

// Pause blocks for the given duration without touching the device; queued
// silence is just time.
func (p *Player) Pause(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Request implements speech.Focus by resuming the audio context.
func (p *Player) Request() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx.Resume()
}

// Release implements speech.Focus by suspending the audio context.
func (p *Player) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ctx.Suspend(); err != nil {
		log.Warn("could not suspend audio context", "error", err)
	}
}
