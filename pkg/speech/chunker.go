package speech

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"
	"unicode"
)

// DefaultMaxChunkLength is the chunk size cap used when the engine does not
// report a maximum speech input length.
const DefaultMaxChunkLength = 3999

// Soft cut thresholds, as a fraction of the maximum chunk length. Past the
// first, a line feed ends the chunk; past the second, any whitespace does.
const (
	softCutLineFeed   = 0.7
	softCutWhitespace = 0.9
)

// UtteranceInfo describes one chunk in flight: the text handed to the
// engine, where it came from in the input stream, and the silence scheduled
// behind it. The task's FIFO queue holds these in production order.
type UtteranceInfo struct {
	// ID is the opaque token correlating engine callbacks to this chunk.
	ID string

	// Text is the chunk's character content. May be empty; a zero-length
	// utterance is still tracked to preserve silence ordering.
	Text string

	// InputStartIndex is the byte offset of this chunk in the input stream.
	InputStartIndex int64

	// BytesRead is the number of input bytes consumed to produce this
	// chunk. It can exceed len(Text) when characters were filtered out or
	// converted to silence.
	BytesRead int

	// Silence is how long to pause after this chunk's speech (0 = none).
	Silence time.Duration

	// SilenceEnqueued records whether a trailing silence unit was
	// successfully scheduled with the engine for this chunk.
	SilenceEnqueued bool
}

// IDSource produces utterance identifiers. It is injected per task so that
// unrelated jobs stay independently testable.
type IDSource interface {
	// Next returns a new unique identifier.
	Next() string
}

// Counter is an IDSource rendering a monotonically increasing counter as a
// string. The zero value is ready to use and safe for concurrent callers.
type Counter struct {
	n uint64
}

// Next returns the next counter value as a string.
func (c *Counter) Next() string {
	return strconv.FormatUint(atomic.AddUint64(&c.n, 1), 10)
}

// Chunker pulls characters from a byte stream and cuts them into
// engine-sized chunks, preferring to break at delimiters and whitespace
// before the hard length limit. It is fully lazy: input size is unbounded
// and restarting requires a fresh stream.
type Chunker struct {
	r        *bufio.Reader
	policy   SilencePolicy
	filter   Filter
	maxLen   int
	ids      IDSource
	offset   int64
	filtered int
}

// NewChunker creates a chunker over r. maxLen caps chunk length; pass an
// engine's reported limit minus one, or zero for the default.
func NewChunker(r io.Reader, maxLen int, policy SilencePolicy, filter Filter, ids IDSource) *Chunker {
	if maxLen <= 0 {
		maxLen = DefaultMaxChunkLength
	}
	return &Chunker{
		r:      bufio.NewReader(r),
		policy: policy,
		filter: filter,
		maxLen: maxLen,
		ids:    ids,
	}
}

// FilteredCount returns the total number of characters the filter has
// removed across all chunks so far.
func (c *Chunker) FilteredCount() int {
	return c.filtered
}

// Next reads the next chunk from the stream. It returns io.EOF once the
// stream is exhausted before any character could be read; any other error
// is a stream read failure and aborts the task.
//
// Cut conditions, checked per character:
//   - a non-whitespace delimiter with positive silence follows real
//     content: cut, excluding the delimiter, recording its silence;
//   - a line feed follows real content: cut, excluding it, recording the
//     line-break silence (which may be zero);
//   - a line feed arrives once the buffer passed 70% of the limit;
//   - any whitespace arrives once the buffer passed 90% of the limit;
//   - the buffer reaches the limit exactly (hard cut, may split a word).
func (c *Chunker) Next() (*UtteranceInfo, error) {
	var (
		buf        []rune
		bytesRead  int
		silence    time.Duration
		hasContent bool
	)
	start := c.offset

	for {
		r, size, err := c.r.ReadRune()
		if err == io.EOF {
			if bytesRead == 0 {
				return nil, io.EOF
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading input stream: %w", err)
		}
		bytesRead += size
		c.offset += int64(size)

		class := Classify(r)
		isSpace := unicode.IsSpace(r)

		if class != ClassNone && hasContent {
			if isSpace {
				// A line break always ends an utterance with content,
				// even when its silence is configured to zero.
				silence = c.policy.Duration(class)
				break
			}
			if d := c.policy.Duration(class); d > 0 {
				silence = d
				break
			}
		}

		if isSpace {
			if !hasContent {
				continue // counted in bytesRead, never buffered
			}
			if r == '\n' && len(buf) > int(float64(c.maxLen)*softCutLineFeed) {
				break
			}
			if len(buf) > int(float64(c.maxLen)*softCutWhitespace) {
				break
			}
		} else if class == ClassNone {
			hasContent = true
		}

		buf = append(buf, r)
		if len(buf) >= c.maxLen {
			break
		}
	}

	if c.filter.Enabled() {
		var dropped int
		buf, dropped = c.filter.Apply(buf)
		c.filtered += dropped
	}

	return &UtteranceInfo{
		ID:              c.ids.Next(),
		Text:            string(buf),
		InputStartIndex: start,
		BytesRead:       bytesRead,
		Silence:         silence,
	}, nil
}
