// Package mock provides a scripted speech engine for testing. Accepted
// units are dispatched on a single goroutine so callbacks keep engine
// order, exactly like a real callback-driven engine.
package mock

import (
	"os"
	"sync"
	"time"

	"github.com/dgnsrekt/saywav/pkg/speech"
	"github.com/dgnsrekt/saywav/pkg/wave"
)

// Spoken records one unit submitted to the engine.
type Spoken struct {
	Text    string
	ID      string
	Silence time.Duration
	OutFile string
}

// Engine implements speech.Engine with scriptable behavior.
type Engine struct {
	mu sync.Mutex
	cb speech.Callback

	// MaxLen is returned by MaxInputLength (0 = unreported).
	MaxLen int

	// RejectAfter makes submissions fail once this many units were
	// accepted. Negative means never reject.
	RejectAfter int

	// ErrorOnUtterance, when non-empty, delivers OnError with ErrorCode
	// for that utterance id instead of OnDone.
	ErrorOnUtterance string
	ErrorCode        int

	// StopOnUtterance, when non-empty, delivers OnStop for that
	// utterance id instead of OnDone.
	StopOnUtterance string

	// Hold accepts units without delivering any callbacks for them.
	Hold bool

	// PayloadBytes is the PCM payload size written per non-empty
	// synthesized file.
	PayloadBytes int

	accepted int
	spoken   []Spoken
	events   chan func()
	closed   bool
	wg       sync.WaitGroup
}

// New creates a mock engine with its dispatch goroutine running.
func New() *Engine {
	e := &Engine{
		RejectAfter:  -1,
		ErrorCode:    speech.ErrorSynthesis,
		PayloadBytes: 64,
		events:       make(chan func(), 128),
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for fn := range e.events {
			fn()
		}
	}()
	return e
}

// Spoken returns every unit the engine accepted, in order.
func (e *Engine) Spoken() []Spoken {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Spoken, len(e.spoken))
	copy(out, e.spoken)
	return out
}

// Speak implements speech.Engine.
func (e *Engine) Speak(text string, _ speech.QueueMode, utteranceID string) bool {
	return e.accept(Spoken{Text: text, ID: utteranceID}, func(cb speech.Callback) {
		cb.OnStart(utteranceID)
		e.deliverCompletion(cb, utteranceID)
	})
}

// EnqueueSilence implements speech.Engine.
func (e *Engine) EnqueueSilence(d time.Duration, utteranceID string) bool {
	return e.accept(Spoken{Silence: d, ID: utteranceID}, func(cb speech.Callback) {
		e.deliverCompletion(cb, utteranceID)
	})
}

// SynthesizeToFile implements speech.Engine. Non-empty text produces a
// small valid PCM file; empty text produces a header-only artifact, the
// way real engines emit empty files for empty utterances.
func (e *Engine) SynthesizeToFile(text, outFile, utteranceID string) bool {
	return e.accept(Spoken{Text: text, ID: utteranceID, OutFile: outFile}, func(cb speech.Callback) {
		cb.OnStart(utteranceID)
		if err := e.writeFile(text, outFile); err != nil {
			cb.OnError(utteranceID, speech.ErrorOutput)
			return
		}
		e.deliverCompletion(cb, utteranceID)
	})
}

// MaxInputLength implements speech.Engine.
func (e *Engine) MaxInputLength() int {
	return e.MaxLen
}

// SetCallback implements speech.Engine.
func (e *Engine) SetCallback(cb speech.Callback) {
	e.mu.Lock()
	e.cb = cb
	e.mu.Unlock()
}

// Stop implements speech.Engine.
func (e *Engine) Stop() {}

// Close implements speech.Engine, draining the dispatch goroutine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	close(e.events)
	e.wg.Wait()
	return nil
}

func (e *Engine) accept(unit Spoken, deliver func(speech.Callback)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false
	}
	if e.RejectAfter >= 0 && e.accepted >= e.RejectAfter {
		return false
	}
	e.accepted++
	e.spoken = append(e.spoken, unit)

	if e.Hold {
		return true
	}

	e.events <- func() {
		e.mu.Lock()
		cb := e.cb
		e.mu.Unlock()
		if cb != nil {
			deliver(cb)
		}
	}
	return true
}

func (e *Engine) deliverCompletion(cb speech.Callback, utteranceID string) {
	switch utteranceID {
	case e.ErrorOnUtterance:
		cb.OnError(utteranceID, e.ErrorCode)
	case e.StopOnUtterance:
		cb.OnStop(utteranceID, true)
	default:
		cb.OnDone(utteranceID)
	}
}

func (e *Engine) writeFile(text, outFile string) error {
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	hdr := &wave.Header{
		AudioFormat:   wave.FormatPCM,
		NumChannels:   1,
		SampleRate:    22050,
		ByteRate:      44100,
		BlockAlign:    2,
		BitsPerSample: 16,
	}
	payload := 0
	if text != "" {
		payload = e.PayloadBytes
	}
	if err := wave.WriteHeader(f, hdr, uint32(payload)); err != nil { //nolint:gosec
		return err
	}
	if payload > 0 {
		if _, err := f.Write(make([]byte, payload)); err != nil {
			return err
		}
	}
	return f.Close()
}
