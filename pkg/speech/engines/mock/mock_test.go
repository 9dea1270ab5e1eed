package mock

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/saywav/pkg/speech"
	"github.com/dgnsrekt/saywav/pkg/wave"
)

// collector records callback invocations in arrival order.
type collector struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
	want   int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) add(event string) {
	c.mu.Lock()
	c.events = append(c.events, event)
	if len(c.events) == c.want {
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *collector) OnStart(id string)        { c.add("start:" + id) }
func (c *collector) OnDone(id string)         { c.add("done:" + id) }
func (c *collector) OnError(id string, _ int) { c.add("error:" + id) }
func (c *collector) OnStop(id string, _ bool) { c.add("stop:" + id) }

func (c *collector) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("callbacks did not arrive in time")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	copy(out, c.events)
	return out
}

func TestEngineCallbackOrder(t *testing.T) {
	engine := New()
	defer engine.Close()

	cb := newCollector(5)
	engine.SetCallback(cb)

	if !engine.Speak("one", speech.QueueAdd, "1") {
		t.Fatal("Speak rejected")
	}
	if !engine.EnqueueSilence(200*time.Millisecond, "1.sil") {
		t.Fatal("EnqueueSilence rejected")
	}
	if !engine.Speak("two", speech.QueueAdd, "2") {
		t.Fatal("Speak rejected")
	}

	events := cb.wait(t)
	want := []string{"start:1", "done:1", "done:1.sil", "start:2", "done:2"}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestEngineRejectAfter(t *testing.T) {
	engine := New()
	engine.RejectAfter = 1
	defer engine.Close()

	if !engine.Speak("one", speech.QueueAdd, "1") {
		t.Fatal("First unit rejected")
	}
	if engine.Speak("two", speech.QueueAdd, "2") {
		t.Fatal("Second unit accepted past the limit")
	}
}

func TestEngineErrorScript(t *testing.T) {
	engine := New()
	engine.ErrorOnUtterance = "1"
	engine.ErrorCode = speech.ErrorSynthesis
	defer engine.Close()

	cb := newCollector(2)
	engine.SetCallback(cb)
	engine.Speak("one", speech.QueueAdd, "1")

	events := cb.wait(t)
	if events[1] != "error:1" {
		t.Errorf("events = %v, want error for utterance 1", events)
	}
}

func TestEngineSynthesizeToFile(t *testing.T) {
	engine := New()
	engine.PayloadBytes = 128
	defer engine.Close()

	dir := t.TempDir()
	cb := newCollector(2)
	engine.SetCallback(cb)

	path := filepath.Join(dir, "out.wav")
	if !engine.SynthesizeToFile("hello", path, "1") {
		t.Fatal("SynthesizeToFile rejected")
	}
	cb.wait(t)

	hdr, err := wave.ReadFileHeader(path)
	if err != nil {
		t.Fatalf("ReadFileHeader failed: %v", err)
	}
	if hdr.DataSize != 128 {
		t.Errorf("DataSize = %d, want 128", hdr.DataSize)
	}
}

func TestEngineEmptyTextWritesHeaderOnly(t *testing.T) {
	engine := New()
	defer engine.Close()

	dir := t.TempDir()
	cb := newCollector(2)
	engine.SetCallback(cb)

	path := filepath.Join(dir, "empty.wav")
	if !engine.SynthesizeToFile("", path, "1") {
		t.Fatal("SynthesizeToFile rejected")
	}
	cb.wait(t)

	hdr, err := wave.ReadFileHeader(path)
	if err != nil {
		t.Fatalf("ReadFileHeader failed: %v", err)
	}
	if hdr.DataSize != 0 {
		t.Errorf("DataSize = %d, want 0", hdr.DataSize)
	}
}

func TestEngineCloseRejectsFurtherUnits(t *testing.T) {
	engine := New()
	if err := engine.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if engine.Speak("late", speech.QueueAdd, "1") {
		t.Error("Speak accepted after Close")
	}
	// Closing twice is a no-op.
	if err := engine.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
}
