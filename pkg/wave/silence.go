package wave

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// silenceSuffix marks a file name as a synthetic-silence placeholder. Such a
// file is only materialized on disk at join time, once the format of the real
// files it sits between is known.
const silenceSuffix = "ms_sil.wav"

// silenceWriteChunk is the buffer size used when writing zero payload bytes.
const silenceWriteChunk = 32 * 1024

// SilenceFileName returns the placeholder file name for a silence of the
// given duration, e.g. "200ms_sil.wav".
func SilenceFileName(d time.Duration) string {
	return fmt.Sprintf("%d%s", d.Milliseconds(), silenceSuffix)
}

// ParseSilenceFileName reports whether name (a base name or a path) follows
// the silence placeholder convention, and if so, the encoded duration.
func ParseSilenceFileName(name string) (time.Duration, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, silenceSuffix) {
		return 0, false
	}
	ms, err := strconv.ParseInt(strings.TrimSuffix(base, silenceSuffix), 10, 64)
	if err != nil || ms < 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// IsSilenceFile reports whether name follows the silence placeholder naming
// convention.
func IsSilenceFile(name string) bool {
	_, ok := ParseSilenceFileName(name)
	return ok
}

// WriteSilenceFile materializes a placeholder at path as a real WAV file
// with all-zero PCM payload. The format fields are copied from tmpl; the
// payload length is ByteRate scaled by the duration, rounded up to an even
// byte count so sample frames stay aligned.
func WriteSilenceFile(path string, tmpl *Header, d time.Duration) error {
	dataSize := uint32(float64(tmpl.ByteRate) * d.Seconds())
	if dataSize%2 != 0 {
		dataSize++
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating silence file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if err := WriteHeader(f, tmpl, dataSize); err != nil {
		return err
	}

	zeros := make([]byte, silenceWriteChunk)
	for remaining := int(dataSize); remaining > 0; {
		n := remaining
		if n > len(zeros) {
			n = len(zeros)
		}
		if _, err := f.Write(zeros[:n]); err != nil {
			return fmt.Errorf("writing silence payload: %w", err)
		}
		remaining -= n
	}

	return f.Close()
}

// RemoveStaleSilenceFiles deletes leftover placeholder files from dir,
// typically before a new file-synthesis task reuses the directory. Deletion
// failures are reported but a best effort is made on the rest.
func RemoveStaleSilenceFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading working directory: %w", err)
	}

	var firstErr error
	for _, e := range entries {
		if e.IsDir() || !IsSilenceFile(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
