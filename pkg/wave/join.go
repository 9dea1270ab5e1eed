package wave

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// ProgressFunc receives join progress after each consumed file: the overall
// percentage of payload bytes written, the file just consumed, and that
// file's own completion percentage. Returning false requests a cooperative
// stop; the check happens between files, never mid-copy.
type ProgressFunc func(percent int, file string, filePercent int) bool

// JoinOptions controls how Join consumes its inputs.
type JoinOptions struct {
	// DeleteSources removes each input file as soon as its payload has been
	// fully copied to the sink.
	DeleteSources bool

	// KeepSilenceFiles exempts materialized silence files from
	// DeleteSources, for when a later phase of the same task reuses them.
	KeepSilenceFiles bool

	// Progress, when non-nil, is invoked as files are consumed.
	Progress ProgressFunc
}

// Join concatenates the listed WAV files into sink in order, writing a
// single recomputed header followed by every file's payload. Silence
// placeholder entries are materialized on demand from the first real file's
// format. Files at or below the bare header size are silently excluded as
// engine-produced empty artifacts.
//
// An empty list is a no-op. A single-file list is byte-copied verbatim,
// preserving pass-through behavior even for files that are not valid WAVs.
func Join(files []string, sink io.Writer, opts JoinOptions) error {
	switch len(files) {
	case 0:
		return nil
	case 1:
		return copyVerbatim(files[0], sink, opts)
	}

	if err := materializeSilence(files); err != nil {
		return err
	}

	joinable, err := excludeCorrupt(files, opts)
	if err != nil {
		return err
	}
	if len(joinable) == 0 {
		return ErrNoJoinableFiles
	}

	headers := make([]*Header, len(joinable))
	var totalData uint32
	for i, path := range joinable {
		hdr, err := ReadFileHeader(path)
		if err != nil {
			return err
		}
		if i > 0 && !Compatible(headers[0], hdr) {
			return fmt.Errorf("%w: %s does not match %s", ErrIncompatibleFormat, path, joinable[0])
		}
		headers[i] = hdr
		totalData += hdr.DataSize
	}

	if err := WriteHeader(sink, headers[0], totalData); err != nil {
		return err
	}

	var written uint32
	for i, path := range joinable {
		if err := copyPayload(path, sink, headers[i].DataSize); err != nil {
			return err
		}
		written += headers[i].DataSize

		if opts.DeleteSources && !(opts.KeepSilenceFiles && IsSilenceFile(path)) {
			if err := os.Remove(path); err != nil {
				log.Warn("could not delete consumed wave file", "file", path, "error", err)
			}
		}

		if opts.Progress != nil {
			percent := 100
			if totalData > 0 {
				percent = int(uint64(written) * 100 / uint64(totalData))
			}
			if !opts.Progress(percent, path, 100) && i < len(joinable)-1 {
				return ErrJoinCancelled
			}
		}
	}

	return nil
}

// JoinToFile joins files into a new file at outPath.
func JoinToFile(files []string, outPath string, opts JoinOptions) error {
	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	if err := Join(files, out, opts); err != nil {
		out.Close() //nolint:errcheck,gosec
		return err
	}
	return out.Close()
}

// copyVerbatim streams a single file byte for byte, header included.
func copyVerbatim(path string, sink io.Writer, opts JoinOptions) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening wave file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(sink, f); err != nil {
		return fmt.Errorf("copying %s: %w", path, err)
	}
	if opts.DeleteSources && !(opts.KeepSilenceFiles && IsSilenceFile(path)) {
		if err := os.Remove(path); err != nil {
			log.Warn("could not delete consumed wave file", "file", path, "error", err)
		}
	}
	if opts.Progress != nil {
		opts.Progress(100, path, 100)
	}
	return nil
}

// materializeSilence writes real zero-payload WAV files for every silence
// placeholder in files that does not yet exist on disk, using the first
// real file with an actual payload as the format template.
func materializeSilence(files []string) error {
	var tmpl *Header
	for _, path := range files {
		if IsSilenceFile(path) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || info.Size() <= HeaderSize {
			continue
		}
		hdr, err := ReadFileHeader(path)
		if err != nil {
			return err
		}
		tmpl = hdr
		break
	}

	for _, path := range files {
		d, ok := ParseSilenceFileName(path)
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue // already on disk
		}
		if tmpl == nil {
			return fmt.Errorf("%w: no template file for silence %s", ErrNoJoinableFiles, filepath.Base(path))
		}
		log.Debug("materializing silence file", "file", path, "duration", d)
		if err := WriteSilenceFile(path, tmpl, d); err != nil {
			return err
		}
	}
	return nil
}

// excludeCorrupt drops files whose size does not exceed the bare header
// size. Such files are produced by engines for empty utterances and are not
// an error condition. Excluded files are deleted when permitted.
func excludeCorrupt(files []string, opts JoinOptions) ([]string, error) {
	joinable := files[:0:0]
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("inspecting wave file: %w", err)
		}
		if info.Size() <= HeaderSize {
			log.Debug("excluding empty or corrupt wave file", "file", path, "size", info.Size())
			if opts.DeleteSources {
				if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.Warn("could not delete excluded wave file", "file", path, "error", err)
				}
			}
			continue
		}
		joinable = append(joinable, path)
	}
	return joinable, nil
}

// copyPayload streams exactly dataSize payload bytes of path into sink.
func copyPayload(path string, sink io.Writer, dataSize uint32) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening wave file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := ReadHeader(f); err != nil {
		return err
	}
	if _, err := io.CopyN(sink, f, int64(dataSize)); err != nil {
		return fmt.Errorf("copying payload of %s: %w", path, err)
	}
	return nil
}
