// Package piper implements a speech engine backed by the piper TTS binary.
// Units are processed sequentially on one worker goroutine, so completion
// callbacks arrive in submission order, matching the engine contract the
// task state machine depends on.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/saywav/pkg/speech"
	"github.com/dgnsrekt/saywav/pkg/wave"
)

// Default worker queue depth. Tasks keep one chunk in flight, so this only
// needs headroom for trailing silence and spacing units.
const queueDepth = 16

// Settings configures the piper subprocess.
type Settings struct {
	// Binary is the piper executable name or path.
	Binary string

	// ModelPath is the ONNX voice model passed to piper.
	ModelPath string

	// SampleRate of the model's output, used for silence and empty files.
	SampleRate int

	// Timeout bounds a single synthesis subprocess run.
	Timeout time.Duration
}

// DefaultSettings returns settings suitable for a stock piper install.
func DefaultSettings() Settings {
	return Settings{
		Binary:     "piper",
		SampleRate: 22050,
		Timeout:    30 * time.Second,
	}
}

// AudioSink plays PCM audio for the read-aloud path. It may be nil for
// file-synthesis-only use.
type AudioSink interface {
	// Play blocks until the 16-bit PCM data finished playing.
	Play(pcm []byte) error
	// Pause blocks for the duration of a silence unit.
	Pause(d time.Duration)
}

type unitKind int

const (
	unitSpeak unitKind = iota
	unitSilence
	unitFile
)

type unit struct {
	kind    unitKind
	text    string
	silence time.Duration
	outFile string
	id      string
}

// Engine is a speech.Engine running the piper binary per utterance.
type Engine struct {
	settings Settings
	sink     AudioSink

	mu     sync.Mutex
	cb     speech.Callback
	closed bool

	units  chan unit
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates the piper installation and starts the engine's worker.
func New(settings Settings, sink AudioSink) (*Engine, error) {
	if settings.Binary == "" {
		settings.Binary = "piper"
	}
	if settings.SampleRate <= 0 {
		settings.SampleRate = 22050
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if _, err := exec.LookPath(settings.Binary); err != nil {
		return nil, fmt.Errorf("piper binary not found: %w", err)
	}
	if settings.ModelPath != "" {
		if _, err := os.Stat(settings.ModelPath); err != nil {
			return nil, fmt.Errorf("piper model not found: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		settings: settings,
		sink:     sink,
		units:    make(chan unit, queueDepth),
		ctx:      ctx,
		cancel:   cancel,
	}
	e.wg.Add(1)
	go e.worker()
	return e, nil
}

// Speak implements speech.Engine.
func (e *Engine) Speak(text string, _ speech.QueueMode, utteranceID string) bool {
	return e.enqueue(unit{kind: unitSpeak, text: text, id: utteranceID})
}

// EnqueueSilence implements speech.Engine.
func (e *Engine) EnqueueSilence(d time.Duration, utteranceID string) bool {
	return e.enqueue(unit{kind: unitSilence, silence: d, id: utteranceID})
}

// SynthesizeToFile implements speech.Engine.
func (e *Engine) SynthesizeToFile(text, outFile, utteranceID string) bool {
	return e.enqueue(unit{kind: unitFile, text: text, outFile: outFile, id: utteranceID})
}

// MaxInputLength implements speech.Engine. Piper does not impose a
// meaningful input limit; the chunker falls back to its default.
func (e *Engine) MaxInputLength() int {
	return 0
}

// SetCallback implements speech.Engine.
func (e *Engine) SetCallback(cb speech.Callback) {
	e.mu.Lock()
	e.cb = cb
	e.mu.Unlock()
}

// Stop implements speech.Engine, cancelling queued and in-flight units.
func (e *Engine) Stop() {
	e.cancel()
}

// Close implements speech.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	close(e.units)
	e.wg.Wait()
	return nil
}

func (e *Engine) enqueue(u unit) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.ctx.Err() != nil {
		return false
	}
	select {
	case e.units <- u:
		return true
	default:
		return false
	}
}

func (e *Engine) callback() speech.Callback {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cb
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for u := range e.units {
		cb := e.callback()
		if e.ctx.Err() != nil {
			if cb != nil {
				cb.OnStop(u.id, false)
			}
			continue
		}
		e.process(u, cb)
	}
}

func (e *Engine) process(u unit, cb speech.Callback) {
	switch u.kind {
	case unitSilence:
		if e.sink != nil {
			e.sink.Pause(u.silence)
		} else {
			time.Sleep(u.silence)
		}
		if cb != nil {
			cb.OnDone(u.id)
		}

	case unitSpeak:
		if cb != nil {
			cb.OnStart(u.id)
		}
		if err := e.speak(u.text); err != nil {
			e.fail(cb, u.id, err)
			return
		}
		if cb != nil {
			cb.OnDone(u.id)
		}

	case unitFile:
		if cb != nil {
			cb.OnStart(u.id)
		}
		if err := e.synthesizeToFile(u.text, u.outFile); err != nil {
			e.fail(cb, u.id, err)
			return
		}
		if cb != nil {
			cb.OnDone(u.id)
		}
	}
}

func (e *Engine) fail(cb speech.Callback, id string, err error) {
	if errors.Is(err, context.Canceled) {
		if cb != nil {
			cb.OnStop(id, true)
		}
		return
	}
	log.Error("piper synthesis failed", "utterance", id, "error", err)
	if cb != nil {
		cb.OnError(id, errorCode(err))
	}
}

func (e *Engine) speak(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	wav, err := e.synthesize(text)
	if err != nil {
		return err
	}
	hdr, err := wave.ReadHeader(bytes.NewReader(wav))
	if err != nil {
		return err
	}
	if e.sink == nil {
		return errors.New("no audio sink configured")
	}
	payload := wav[wave.HeaderSize:]
	if uint32(len(payload)) > hdr.DataSize {
		payload = payload[:hdr.DataSize]
	}
	return e.sink.Play(payload)
}

func (e *Engine) synthesizeToFile(text, outFile string) error {
	if strings.TrimSpace(text) == "" {
		// Zero-length utterances still produce a file so downstream
		// ordering holds; the joiner excludes header-only files.
		return e.writeEmptyFile(outFile)
	}
	wav, err := e.synthesize(text)
	if err != nil {
		return err
	}
	return os.WriteFile(outFile, wav, 0o644)
}

// synthesize runs one piper subprocess, feeding text on stdin and reading
// the WAV output from stdout. Stdin is wired up before the process starts
// to avoid write races against a fast-exiting child.
func (e *Engine) synthesize(text string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(e.ctx, e.settings.Timeout)
	defer cancel()

	args := []string{"--output_file", "-"}
	if e.settings.ModelPath != "" {
		args = append(args, "--model", e.settings.ModelPath)
	}

	cmd := exec.CommandContext(ctx, e.settings.Binary, args...)
	cmd.Stdin = strings.NewReader(text)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if e.ctx.Err() != nil {
			return nil, context.Canceled
		}
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("piper timed out after %v", e.settings.Timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("piper failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("piper failed: %w", err)
	}

	out := stdout.Bytes()
	if len(out) < wave.HeaderSize {
		return nil, fmt.Errorf("piper produced %d bytes, want at least a wave header", len(out))
	}
	return out, nil
}

func (e *Engine) writeEmptyFile(outFile string) error {
	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	sampleRate := uint32(e.settings.SampleRate) //nolint:gosec
	hdr := &wave.Header{
		AudioFormat:   wave.FormatPCM,
		NumChannels:   1,
		SampleRate:    sampleRate,
		ByteRate:      sampleRate * 2,
		BlockAlign:    2,
		BitsPerSample: 16,
	}
	if err := wave.WriteHeader(f, hdr, 0); err != nil {
		return err
	}
	return f.Close()
}

// errorCode maps a synthesis failure to the engine error taxonomy.
func errorCode(err error) int {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timed out"):
		return speech.ErrorNetworkTimeout
	case strings.Contains(msg, "model"):
		return speech.ErrorVoiceDataMissing
	case strings.Contains(msg, "audio sink"), strings.Contains(msg, "writing"):
		return speech.ErrorOutput
	default:
		return speech.ErrorSynthesis
	}
}
