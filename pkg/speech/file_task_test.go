package speech_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/saywav/pkg/speech"
	"github.com/dgnsrekt/saywav/pkg/speech/engines/mock"
	"github.com/dgnsrekt/saywav/pkg/wave"
)

func TestFileSynthesisTaskWritesUtteranceFiles(t *testing.T) {
	engine := mock.New()
	defer engine.Close()

	workDir := filepath.Join(t.TempDir(), "work")
	input, size := inputOf("One. Two.")
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{}, &speech.Counter{}, &recordingSink{}, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())

	if !task.Succeeded() {
		t.Fatal("Task did not succeed")
	}

	files := task.Files()
	wantBases := []string{"utt000.wav", "200ms_sil.wav", "utt001.wav", "200ms_sil.wav"}
	if len(files) != len(wantBases) {
		t.Fatalf("Files = %v, want %d entries", files, len(wantBases))
	}
	for i, path := range files {
		if filepath.Base(path) != wantBases[i] {
			t.Errorf("files[%d] = %q, want base %q", i, path, wantBases[i])
		}
	}

	// The utterance files are real WAVs; the placeholders are not on disk yet.
	for _, base := range []string{"utt000.wav", "utt001.wav"} {
		hdr, err := wave.ReadFileHeader(filepath.Join(workDir, base))
		if err != nil {
			t.Errorf("%s is not a readable WAV: %v", base, err)
		} else if hdr.DataSize == 0 {
			t.Errorf("%s has an empty payload", base)
		}
	}
	if _, err := os.Stat(filepath.Join(workDir, "200ms_sil.wav")); !errors.Is(err, os.ErrNotExist) {
		t.Error("Silence placeholder was materialized during synthesis")
	}
}

func TestFileSynthesisTaskClearsStalePlaceholders(t *testing.T) {
	engine := mock.New()
	defer engine.Close()

	workDir := t.TempDir()
	stale := filepath.Join(workDir, "999ms_sil.wav")
	if err := os.WriteFile(stale, []byte("x"), 0o644); err != nil {
		t.Fatalf("Failed to write stale placeholder: %v", err)
	}

	input, size := inputOf("Hello.")
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{}, &speech.Counter{}, &recordingSink{}, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Error("Stale silence placeholder survived Begin")
	}
}

func TestFileSynthesisTaskFailureDeletesOutput(t *testing.T) {
	engine := mock.New()
	engine.ErrorOnUtterance = "2"
	defer engine.Close()

	workDir := t.TempDir()
	input, size := inputOf("One. Two. Three.")
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{}, &speech.Counter{}, &recordingSink{}, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())

	if task.Succeeded() {
		t.Error("Task succeeded despite an engine error")
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Working directory still holds %d files after failure", len(entries))
	}
}

func TestWritePipelineEndToEnd(t *testing.T) {
	engine := mock.New()
	defer engine.Close()

	workDir := filepath.Join(t.TempDir(), "work")
	outPath := filepath.Join(t.TempDir(), "out.wav")

	input, size := inputOf("One. Two.")
	sink := &recordingSink{}
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{}, &speech.Counter{}, sink, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())
	if !task.Succeeded() {
		t.Fatal("Synthesis task did not succeed")
	}

	join := speech.NewJoinTask(task.Files(), outPath, workDir, sink)
	if err := join.Run(); err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	hdr, err := wave.ReadFileHeader(outPath)
	if err != nil {
		t.Fatalf("Output is not a readable WAV: %v", err)
	}
	// Two 64-byte utterances plus the 200ms placeholder consumed twice:
	// 2*64 + 2*8820 payload bytes.
	want := uint32(2*64 + 2*8820)
	if hdr.DataSize != want {
		t.Errorf("Output DataSize = %d, want %d", hdr.DataSize, want)
	}

	if _, err := os.Stat(workDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("Working directory survived a successful join")
	}

	values := sink.values()
	if values[len(values)-1] != 100 {
		t.Errorf("Final progress = %d, want 100", values[len(values)-1])
	}
}

func TestJoinTaskStop(t *testing.T) {
	engine := mock.New()
	defer engine.Close()

	workDir := t.TempDir()
	outPath := filepath.Join(t.TempDir(), "out.wav")

	input, size := inputOf("One. Two. Three.")
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{}, &speech.Counter{}, &recordingSink{}, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())

	sink := &recordingSink{}
	join := speech.NewJoinTask(task.Files(), outPath, workDir, sink)
	join.RequestStop()

	if err := join.Run(); !errors.Is(err, wave.ErrJoinCancelled) {
		t.Fatalf("Run error = %v, want ErrJoinCancelled", err)
	}
	if _, err := os.Stat(outPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("Partial output file survived a cancelled join")
	}
	values := sink.values()
	if values[len(values)-1] != -1 {
		t.Errorf("Final progress = %d, want -1", values[len(values)-1])
	}
}

func TestFileSynthesisTaskEmptyChunkProducesHeaderOnlyFile(t *testing.T) {
	engine := mock.New()
	defer engine.Close()

	workDir := t.TempDir()
	// The single word filters away entirely; the chunk becomes empty text.
	input, size := inputOf("http://abc.")
	task, err := speech.NewFileSynthesisTask(engine, input, size, testReadPolicy(),
		speech.Filter{WebLinks: true}, &speech.Counter{}, &recordingSink{}, 1, workDir)
	if err != nil {
		t.Fatalf("NewFileSynthesisTask failed: %v", err)
	}
	if err := task.Begin(); err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	waitDone(t, task.Done())

	if !task.Succeeded() {
		t.Fatal("Task did not succeed")
	}

	info, err := os.Stat(filepath.Join(workDir, "utt000.wav"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != wave.HeaderSize {
		t.Errorf("Empty utterance file size = %d, want %d", info.Size(), wave.HeaderSize)
	}

	if !strings.HasPrefix(filepath.Base(task.Files()[0]), "utt") {
		t.Errorf("files[0] = %q, want an utterance file", task.Files()[0])
	}
}
