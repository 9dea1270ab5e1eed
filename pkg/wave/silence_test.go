package wave

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSilenceFileNameRoundTrip(t *testing.T) {
	name := SilenceFileName(200 * time.Millisecond)
	if name != "200ms_sil.wav" {
		t.Errorf("SilenceFileName = %q, want \"200ms_sil.wav\"", name)
	}

	d, ok := ParseSilenceFileName(name)
	if !ok || d != 200*time.Millisecond {
		t.Errorf("ParseSilenceFileName(%q) = %v, %v", name, d, ok)
	}
}

func TestParseSilenceFileName(t *testing.T) {
	tests := []struct {
		name string
		want time.Duration
		ok   bool
	}{
		{"100ms_sil.wav", 100 * time.Millisecond, true},
		{"0ms_sil.wav", 0, true},
		{"/tmp/work/350ms_sil.wav", 350 * time.Millisecond, true},
		{"utt001.wav", 0, false},
		{"ms_sil.wav", 0, false},
		{"-5ms_sil.wav", 0, false},
		{"xyzms_sil.wav", 0, false},
	}

	for _, tt := range tests {
		d, ok := ParseSilenceFileName(tt.name)
		if ok != tt.ok || d != tt.want {
			t.Errorf("ParseSilenceFileName(%q) = %v, %v, want %v, %v", tt.name, d, ok, tt.want, tt.ok)
		}
	}
}

func TestWriteSilenceFile(t *testing.T) {
	dir := t.TempDir()
	tmpl := testHeader()

	tests := []struct {
		duration time.Duration
		wantData uint32
	}{
		// 44100 B/s * 0.2s = 8820, already even.
		{200 * time.Millisecond, 8820},
		// 44100 B/s * 0.025s = 1102.5, truncated to 1102, even.
		{25 * time.Millisecond, 1102},
		{0, 0},
	}

	for _, tt := range tests {
		path := filepath.Join(dir, SilenceFileName(tt.duration))
		if err := WriteSilenceFile(path, tmpl, tt.duration); err != nil {
			t.Fatalf("WriteSilenceFile(%v) failed: %v", tt.duration, err)
		}

		hdr, err := ReadFileHeader(path)
		if err != nil {
			t.Fatalf("ReadFileHeader failed: %v", err)
		}
		if hdr.DataSize != tt.wantData {
			t.Errorf("duration %v: DataSize = %d, want %d", tt.duration, hdr.DataSize, tt.wantData)
		}
		if hdr.DataSize%2 != 0 {
			t.Errorf("duration %v: DataSize %d is odd", tt.duration, hdr.DataSize)
		}
		if !Compatible(tmpl, hdr) {
			t.Errorf("duration %v: silence format differs from template", tt.duration)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat failed: %v", err)
		}
		if info.Size() != int64(HeaderSize)+int64(hdr.DataSize) {
			t.Errorf("duration %v: file size = %d, want %d", tt.duration, info.Size(), int64(HeaderSize)+int64(hdr.DataSize))
		}
	}
}

func TestRemoveStaleSilenceFiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"100ms_sil.wav", "200ms_sil.wav", "utt001.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	if err := RemoveStaleSilenceFiles(dir); err != nil {
		t.Fatalf("RemoveStaleSilenceFiles failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "utt001.wav" {
		t.Errorf("Remaining entries = %v, want only utt001.wav", entries)
	}
}
