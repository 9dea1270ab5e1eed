// Package wave reads, writes and concatenates canonical RIFF/WAVE PCM files.
// Only the plain 44-byte header layout is supported: extended fmt sub-chunks
// and non-"data" second sub-chunks are rejected.
package wave

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// WAV format constants.
const (
	// HeaderSize is the size of a standard WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1

	// fmtChunkSize is the only fmt sub-chunk size this package accepts.
	fmtChunkSize = 16
)

// Chunk identifier tokens, in file order.
var (
	riffChunkToken = []byte("RIFF")
	waveFormatType = []byte("WAVE")
	fmtChunkToken  = []byte("fmt ")
	dataChunkToken = []byte("data")
)

// Common errors for the wave package.
var (
	// ErrIncompatibleFormat is returned when a header cannot be parsed as
	// plain PCM, or when two files' formats do not match for joining.
	ErrIncompatibleFormat = errors.New("incompatible wave file format")

	// ErrNoJoinableFiles is returned when every input file was excluded as
	// empty or corrupt and nothing remains to join.
	ErrNoJoinableFiles = errors.New("no joinable wave files")

	// ErrJoinCancelled is returned when the progress callback requested an
	// early stop. Bytes already written to the sink remain.
	ErrJoinCancelled = errors.New("wave join cancelled")
)

// Header holds the parsed fields of a canonical RIFF/WAVE PCM header.
// Immutable once parsed; DataSize describes only this file's own payload.
type Header struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	DataSize      uint32
}

// ReadHeader parses the fixed 44-byte RIFF/WAVE PCM header from r, leaving r
// positioned at the start of the PCM payload. All multi-byte fields are
// little-endian.
func ReadHeader(r io.Reader) (*Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated header", ErrIncompatibleFormat)
		}
		return nil, fmt.Errorf("reading wave header: %w", err)
	}

	if !bytes.Equal(raw[0:4], riffChunkToken) || !bytes.Equal(raw[8:12], waveFormatType) {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE descriptor", ErrIncompatibleFormat)
	}
	if !bytes.Equal(raw[12:16], fmtChunkToken) {
		return nil, fmt.Errorf("%w: missing fmt sub-chunk", ErrIncompatibleFormat)
	}
	if size := binary.LittleEndian.Uint32(raw[16:20]); size != fmtChunkSize {
		return nil, fmt.Errorf("%w: extended fmt sub-chunk (size %d)", ErrIncompatibleFormat, size)
	}
	if !bytes.Equal(raw[36:40], dataChunkToken) {
		return nil, fmt.Errorf("%w: second sub-chunk is not data", ErrIncompatibleFormat)
	}

	return &Header{
		ChunkSize:     binary.LittleEndian.Uint32(raw[4:8]),
		AudioFormat:   binary.LittleEndian.Uint16(raw[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(raw[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(raw[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(raw[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(raw[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(raw[34:36]),
		DataSize:      binary.LittleEndian.Uint32(raw[40:44]),
	}, nil
}

// ReadFileHeader opens path and parses its header.
func ReadFileHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wave file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	hdr, err := ReadHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hdr, nil
}

// WriteHeader serializes a header to w, copying the format fields from hdr
// verbatim and substituting dataSize for the payload length. The RIFF chunk
// size is recomputed as 36 + dataSize.
func WriteHeader(w io.Writer, hdr *Header, dataSize uint32) error {
	var raw [HeaderSize]byte

	copy(raw[0:4], riffChunkToken)
	binary.LittleEndian.PutUint32(raw[4:8], HeaderSize-8+dataSize)
	copy(raw[8:12], waveFormatType)

	copy(raw[12:16], fmtChunkToken)
	binary.LittleEndian.PutUint32(raw[16:20], fmtChunkSize)
	binary.LittleEndian.PutUint16(raw[20:22], hdr.AudioFormat)
	binary.LittleEndian.PutUint16(raw[22:24], hdr.NumChannels)
	binary.LittleEndian.PutUint32(raw[24:28], hdr.SampleRate)
	binary.LittleEndian.PutUint32(raw[28:32], hdr.ByteRate)
	binary.LittleEndian.PutUint16(raw[32:34], hdr.BlockAlign)
	binary.LittleEndian.PutUint16(raw[34:36], hdr.BitsPerSample)

	copy(raw[36:40], dataChunkToken)
	binary.LittleEndian.PutUint32(raw[40:44], dataSize)

	if _, err := w.Write(raw[:]); err != nil {
		return fmt.Errorf("writing wave header: %w", err)
	}
	return nil
}

// Compatible reports whether two files can be concatenated losslessly. Chunk
// and data sizes are deliberately excluded; they only encode each file's own
// payload length.
func Compatible(a, b *Header) bool {
	return a.AudioFormat == b.AudioFormat &&
		a.NumChannels == b.NumChannels &&
		a.SampleRate == b.SampleRate &&
		a.ByteRate == b.ByteRate &&
		a.BlockAlign == b.BlockAlign &&
		a.BitsPerSample == b.BitsPerSample
}
