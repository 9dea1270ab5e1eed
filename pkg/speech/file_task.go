package speech

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/saywav/pkg/wave"
)

// FileSynthesisTask synthesizes an input stream into one WAV file per
// utterance, with silence placeholders queued between them, ready for a
// JoinTask to assemble. Stale placeholder files in the working directory
// are cleared on start; a failed task deletes everything it wrote.
type FileSynthesisTask struct {
	*speechTask
	dir   string
	files []string
	seq   int
}

// NewFileSynthesisTask creates a file-synthesis task writing per-utterance
// WAV files into workDir.
func NewFileSynthesisTask(engine Engine, input io.ReadCloser, inputSize int64, policy SilencePolicy, filter Filter, ids IDSource, sink ProgressSink, remaining int, workDir string) (*FileSynthesisTask, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}

	st := newSpeechTask(TaskWriteFile, engine, input, inputSize, sink, remaining)
	st.chunker = NewChunker(input, maxChunkLength(engine), policy, filter, ids)

	t := &FileSynthesisTask{speechTask: st, dir: workDir}
	st.listener = t
	st.submit = func(u *UtteranceInfo) bool {
		path := filepath.Join(t.dir, fmt.Sprintf("utt%03d.wav", t.seq))
		t.seq++
		t.files = append(t.files, path)
		return engine.SynthesizeToFile(u.Text, path, u.ID)
	}
	st.scheduleSilence = func(u *UtteranceInfo) bool {
		t.appendSilence(u)
		// Silence is a placeholder file, materialized at join time; no
		// engine unit is pending for it.
		return false
	}
	st.cleanup = func(success bool) {
		if !success {
			t.deleteWrittenFiles()
		}
	}
	return t, nil
}

// Begin clears stale silence placeholder files from the working directory,
// then starts the pipeline.
func (t *FileSynthesisTask) Begin() error {
	if err := wave.RemoveStaleSilenceFiles(t.dir); err != nil {
		log.Warn("could not clear stale silence files", "dir", t.dir, "error", err)
	}
	return t.speechTask.Begin()
}

// Files returns the ordered list of per-utterance WAV files and silence
// placeholders produced so far.
func (t *FileSynthesisTask) Files() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.files))
	copy(out, t.files)
	return out
}

// WorkDir returns the task's working directory.
func (t *FileSynthesisTask) WorkDir() string {
	return t.dir
}

// appendSilence queues a silence placeholder behind the current chunk's
// file. When the list already ends in an unmaterialized placeholder the two
// are coalesced into one file with the durations summed.
func (t *FileSynthesisTask) appendSilence(u *UtteranceInfo) {
	d := u.Silence
	if n := len(t.files); n > 0 {
		last := t.files[n-1]
		if prev, ok := wave.ParseSilenceFileName(last); ok {
			if _, err := os.Stat(last); os.IsNotExist(err) {
				t.files[n-1] = filepath.Join(t.dir, wave.SilenceFileName(prev+d))
				return
			}
		}
	}
	t.files = append(t.files, filepath.Join(t.dir, wave.SilenceFileName(d)))
}

// deleteWrittenFiles removes partially written output after a failure.
// Deletion failures are logged, not escalated.
func (t *FileSynthesisTask) deleteWrittenFiles() {
	for _, path := range t.files {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("could not delete partial output file", "file", path, "error", err)
		}
	}
	t.files = nil
}

// JoinTask assembles the WAV files a FileSynthesisTask produced into one
// output file. It runs synchronously on the caller's goroutine; the only
// concurrency it supports is cooperative cancellation between files.
type JoinTask struct {
	files   []string
	outPath string
	workDir string
	sink    ProgressSink
	stopped atomic.Bool
}

// NewJoinTask creates a join task over an ordered file list. workDir, when
// non-empty, is removed wholesale after a successful join.
func NewJoinTask(files []string, outPath, workDir string, sink ProgressSink) *JoinTask {
	return &JoinTask{
		files:   files,
		outPath: outPath,
		workDir: workDir,
		sink:    sink,
	}
}

// RequestStop asks the join to abort before consuming its next file.
func (t *JoinTask) RequestStop() {
	t.stopped.Store(true)
}

// Run performs the join, reporting progress through the sink and emitting
// one terminal progress value. A failed join deletes the partial output
// file; source files already consumed are gone either way.
func (t *JoinTask) Run() error {
	t.sink.NotifyProgress(0, TaskProcessFile, 0)

	opts := wave.JoinOptions{
		DeleteSources: true,
		// Coalesced silence can appear at several positions in the list
		// under one file name; keep those until the join is over.
		KeepSilenceFiles: true,
		Progress: func(percent int, file string, _ int) bool {
			if percent < 100 {
				t.sink.NotifyProgress(percent, TaskProcessFile, 0)
			}
			log.Debug("joined wave file", "file", file, "percent", percent)
			return !t.stopped.Load()
		},
	}

	if err := wave.JoinToFile(t.files, t.outPath, opts); err != nil {
		if rmErr := os.Remove(t.outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Warn("could not delete partial output", "file", t.outPath, "error", rmErr)
		}
		t.sink.NotifyProgress(-1, TaskProcessFile, 0)
		return err
	}

	if t.workDir != "" {
		if err := os.RemoveAll(t.workDir); err != nil {
			log.Warn("could not remove working directory", "dir", t.workDir, "error", err)
		}
	}
	t.sink.NotifyProgress(100, TaskProcessFile, 0)
	return nil
}
