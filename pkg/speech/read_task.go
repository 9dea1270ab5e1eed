package speech

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// spacingPause is the short gap inserted between consecutive read-aloud
// utterances. Engines tend to butt chunks together without it.
const spacingPause = 100 * time.Millisecond

// Focus represents exclusive access to the audio output, acquired before
// the first utterance of a read-aloud task and released when it finishes.
type Focus interface {
	// Request acquires the audio output.
	Request() error
	// Release gives the audio output back.
	Release()
}

// ReadTask reads an input stream aloud: chunks are submitted as live
// speech, audio focus is held for the task's lifetime, and a short pause is
// inserted between utterances.
type ReadTask struct {
	*speechTask
	focus   Focus
	started bool
}

// NewReadTask creates a read-aloud task over input. inputSize is the total
// expected input length in bytes, used as the progress denominator.
// remaining is the number of tasks queued behind this one. focus may be nil
// when no audio focus handling applies.
func NewReadTask(engine Engine, input io.ReadCloser, inputSize int64, policy SilencePolicy, filter Filter, ids IDSource, sink ProgressSink, remaining int, focus Focus) (*ReadTask, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}

	st := newSpeechTask(TaskReadText, engine, input, inputSize, sink, remaining)
	st.chunker = NewChunker(input, maxChunkLength(engine), policy, filter, ids)
	st.selectionUpdates = true

	t := &ReadTask{speechTask: st, focus: focus}
	st.listener = t
	st.submit = func(u *UtteranceInfo) bool {
		return engine.Speak(u.Text, QueueAdd, u.ID)
	}
	st.scheduleSilence = func(u *UtteranceInfo) bool {
		return engine.EnqueueSilence(u.Silence, u.ID+silenceIDSuffix)
	}
	st.cleanup = func(bool) {
		if t.focus != nil && t.started {
			t.focus.Release()
		}
	}
	return t, nil
}

// OnStart implements Callback. The first utterance acquires audio focus;
// each later one gets a spacing pause queued behind it.
func (t *ReadTask) OnStart(utteranceID string) {
	t.speechTask.OnStart(utteranceID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskRunning {
		return
	}
	if isSpacingGap(utteranceID) || strings.HasSuffix(utteranceID, silenceIDSuffix) {
		return
	}

	if !t.started {
		t.started = true
		if t.focus != nil {
			if err := t.focus.Request(); err != nil {
				// Focus is best effort; keep speaking without it.
				log.Warn("could not acquire audio focus", "error", err)
			}
		}
		return
	}
	t.engine.EnqueueSilence(spacingPause, utteranceID+gapIDSuffix)
}
