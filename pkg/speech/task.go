package speech

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// TaskID identifies the kind of job a task performs.
type TaskID int

const (
	// TaskReadText reads input aloud through the engine.
	TaskReadText TaskID = iota
	// TaskWriteFile synthesizes input into per-utterance WAV files.
	TaskWriteFile
	// TaskProcessFile joins synthesized WAV files into one output file.
	TaskProcessFile
)

// String returns a string representation of the task id.
func (t TaskID) String() string {
	switch t {
	case TaskReadText:
		return "read-text"
	case TaskWriteFile:
		return "write-file"
	case TaskProcessFile:
		return "process-file"
	default:
		return "unknown"
	}
}

// TaskState represents the lifecycle of a task. Finished is terminal; a
// finished task is not reusable.
type TaskState int

const (
	// TaskNotStarted indicates Begin has not been called.
	TaskNotStarted TaskState = iota
	// TaskRunning indicates the task is processing input.
	TaskRunning
	// TaskFinished indicates the task reached a terminal state.
	TaskFinished
)

// String returns a string representation of the task state.
func (s TaskState) String() string {
	switch s {
	case TaskNotStarted:
		return "not-started"
	case TaskRunning:
		return "running"
	case TaskFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// ProgressSink receives task progress. Percent is -1 for failure, 0-99
// while in progress and 100 on success; the terminal values are emitted
// exactly once per task.
type ProgressSink interface {
	// NotifyProgress reports task progress and how many tasks remain
	// queued behind this one.
	NotifyProgress(percent int, task TaskID, remaining int)

	// NotifyInputSelection reports the input byte span currently being
	// spoken.
	NotifyInputSelection(start, end int64, task TaskID)
}

// Utterance id suffixes for units sharing a chunk's logical queue slot.
const (
	// silenceIDSuffix marks the trailing silence unit of a chunk.
	silenceIDSuffix = ".sil"
	// gapIDSuffix marks an inter-chunk spacing pause in read-aloud mode.
	gapIDSuffix = ".gap"
)

// speechTask is the shared state machine behind the task specializations.
// All utterance bookkeeping runs under one mutex: engine callbacks may
// arrive on any thread, but for one task they are serialized here.
//
// The FIFO queue invariant: utterances sit in exact production order and
// the head is always the oldest outstanding chunk. The engine contract says
// completion callbacks arrive in that same order; anything else is logged
// loudly and ignored.
type speechTask struct {
	mu sync.Mutex

	id      TaskID
	state   TaskState
	engine  Engine
	chunker *Chunker
	input   io.Closer

	inputSize      int64
	inputRead      int64
	inputProcessed int64

	queue        []*UtteranceInfo
	sink         ProgressSink
	remaining    int
	finalize     bool
	lastProgress int
	succeeded    bool
	done         chan struct{}

	// selectionUpdates enables NotifyInputSelection on utterance start.
	selectionUpdates bool

	// listener is the Callback bound to the engine; specializations set it
	// to themselves to intercept notifications. Defaults to the task.
	listener Callback

	// Specialization hooks. submit hands a chunk's text to the engine;
	// scheduleSilence schedules the trailing silence and reports whether
	// an engine unit is now pending for it; cleanup runs once on finish.
	submit          func(u *UtteranceInfo) bool
	scheduleSilence func(u *UtteranceInfo) bool
	cleanup         func(success bool)
}

func newSpeechTask(id TaskID, engine Engine, input io.Closer, inputSize int64, sink ProgressSink, remaining int) *speechTask {
	return &speechTask{
		id:           id,
		engine:       engine,
		input:        input,
		inputSize:    inputSize,
		sink:         sink,
		remaining:    remaining,
		lastProgress: -1,
		done:         make(chan struct{}),
	}
}

// maxChunkLength derives the chunker's cap from the engine's reported
// maximum speech input length.
func maxChunkLength(engine Engine) int {
	if n := engine.MaxInputLength(); n > 0 {
		return n - 1
	}
	return DefaultMaxChunkLength
}

// Begin binds the task to the engine's callbacks and submits the first
// chunk. A stream that yields no chunks finishes successfully right away.
func (t *speechTask) Begin() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case TaskRunning:
		return ErrTaskAlreadyStarted
	case TaskFinished:
		return ErrTaskFinished
	}
	t.state = TaskRunning
	listener := t.listener
	if listener == nil {
		listener = t
	}
	t.engine.SetCallback(listener)
	t.notifyProgressLocked(0)

	u, err := t.chunker.Next()
	if err == io.EOF {
		t.finishLocked(true)
		return nil
	}
	if err != nil {
		t.finishLocked(false)
		return fmt.Errorf("%w: %v", ErrInputRead, err)
	}
	if err := t.submitLocked(u); err != nil {
		t.finishLocked(false)
		return err
	}
	return nil
}

// RequestStop asks the task to finish after the current chunk's completion
// callback instead of pulling further input. In-flight utterances drain.
func (t *speechTask) RequestStop() {
	t.mu.Lock()
	t.finalize = true
	t.mu.Unlock()
}

// Done returns a channel closed when the task reaches a terminal state.
func (t *speechTask) Done() <-chan struct{} {
	return t.done
}

// Succeeded reports whether a finished task completed successfully.
func (t *speechTask) Succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == TaskFinished && t.succeeded
}

// State returns the task's current lifecycle state.
func (t *speechTask) State() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// submitLocked enqueues a chunk: appends it to the FIFO, hands its text to
// the engine and schedules its trailing silence as a second unit in the
// same logical slot.
func (t *speechTask) submitLocked(u *UtteranceInfo) error {
	t.queue = append(t.queue, u)
	t.inputRead += int64(u.BytesRead)

	if !t.submit(u) {
		return ErrEngineRejected
	}
	if u.Silence > 0 && t.scheduleSilence != nil {
		u.SilenceEnqueued = t.scheduleSilence(u)
	}
	return nil
}

// OnStart implements Callback.
func (t *speechTask) OnStart(utteranceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskRunning || !t.selectionUpdates {
		return
	}
	if len(t.queue) == 0 || t.queue[0].ID != utteranceID {
		return
	}
	head := t.queue[0]
	t.sink.NotifyInputSelection(head.InputStartIndex, head.InputStartIndex+int64(head.BytesRead), t.id)
}

// OnDone implements Callback. Only the queue head's id (or its silence
// unit's id) advances the task; anything else indicates the engine broke
// the ordering contract.
func (t *speechTask) OnDone(utteranceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskRunning || len(t.queue) == 0 {
		return
	}
	head := t.queue[0]

	switch utteranceID {
	case head.ID:
		if head.SilenceEnqueued {
			// The silence unit shares this slot; wait for it instead.
			return
		}
		t.completeHeadLocked()
	case head.ID + silenceIDSuffix:
		t.completeHeadLocked()
	default:
		if isSpacingGap(utteranceID) {
			return
		}
		log.Warn("utterance completion did not match queue head",
			"task", t.id, "utterance", utteranceID, "head", head.ID)
	}
}

// OnError implements Callback. A single utterance error aborts the task.
func (t *speechTask) OnError(utteranceID string, code int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskRunning {
		return
	}
	log.Error("speech synthesis failed",
		"task", t.id, "utterance", utteranceID, "category", ErrorCategory(code), "code", code)
	t.finishLocked(false)
}

// OnStop implements Callback. External cancellation discards the queue.
func (t *speechTask) OnStop(utteranceID string, interrupted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskRunning {
		return
	}
	log.Debug("engine stopped externally",
		"task", t.id, "utterance", utteranceID, "interrupted", interrupted)
	t.finishLocked(false)
}

// completeHeadLocked pops the oldest outstanding chunk, accounts its bytes,
// reports progress and pulls the next chunk unless finalization is pending.
func (t *speechTask) completeHeadLocked() {
	head := t.queue[0]
	t.queue = t.queue[1:]
	t.inputProcessed += int64(head.BytesRead)

	if t.inputSize > 0 {
		p := int(t.inputProcessed * 100 / t.inputSize)
		if p > 99 {
			p = 99
		}
		t.notifyProgressLocked(p)
	}

	if t.finalize {
		_, err := t.chunker.Next()
		t.finishLocked(err == io.EOF)
		return
	}

	u, err := t.chunker.Next()
	if err == io.EOF {
		if len(t.queue) == 0 {
			t.finishLocked(true)
		}
		return
	}
	if err != nil {
		log.Error("input stream read failed", "task", t.id, "error", err)
		t.finishLocked(false)
		return
	}
	if err := t.submitLocked(u); err != nil {
		log.Error("could not submit next utterance", "task", t.id, "error", err)
		t.finishLocked(false)
	}
}

// notifyProgressLocked emits in-progress values, keeping the sequence
// monotonically non-decreasing within [0, 99].
func (t *speechTask) notifyProgressLocked(p int) {
	if p <= t.lastProgress || p < 0 || p > 99 {
		return
	}
	t.lastProgress = p
	t.sink.NotifyProgress(p, t.id, t.remaining)
}

// finishLocked releases the task's resources exactly once and emits the
// terminal progress value: 100 on success, -1 on failure.
func (t *speechTask) finishLocked(success bool) {
	if t.state == TaskFinished {
		return
	}
	t.state = TaskFinished
	t.succeeded = success

	t.engine.SetCallback(nil)
	if t.input != nil {
		if err := t.input.Close(); err != nil {
			log.Warn("could not close input stream", "task", t.id, "error", err)
		}
	}
	if t.cleanup != nil {
		t.cleanup(success)
	}
	if t.chunker != nil {
		if n := t.chunker.FilteredCount(); n > 0 {
			log.Info("characters removed from input by filters", "task", t.id, "count", n)
		}
	}

	terminal := 100
	if !success {
		terminal = -1
	}
	t.sink.NotifyProgress(terminal, t.id, t.remaining)
	close(t.done)
}

// Finish forces the task into a terminal state from outside the callback
// flow, releasing its resources.
func (t *speechTask) Finish(success bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finishLocked(success)
}

// isSpacingGap reports whether an utterance id names a read-aloud spacing
// pause rather than a tracked chunk unit.
func isSpacingGap(utteranceID string) bool {
	return strings.HasSuffix(utteranceID, gapIDSuffix)
}
