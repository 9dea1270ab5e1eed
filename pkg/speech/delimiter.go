// Package speech implements the streaming text-to-speech task pipeline:
// delimiter and silence policy, text filtering, bounded utterance chunking,
// and the callback-driven task state machines that feed a speech engine.
package speech

import "time"

// DelimiterClass classifies a character's role as an utterance boundary.
type DelimiterClass int

const (
	// ClassNone indicates the character is not a delimiter.
	ClassNone DelimiterClass = iota
	// ClassLineBreak indicates a line-break character.
	ClassLineBreak
	// ClassSentenceEnd indicates a full stop or ellipsis.
	ClassSentenceEnd
	// ClassQuestion indicates a question mark.
	ClassQuestion
	// ClassExclamation indicates an exclamation mark.
	ClassExclamation
)

// String returns a string representation of the delimiter class.
func (c DelimiterClass) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassLineBreak:
		return "line-break"
	case ClassSentenceEnd:
		return "sentence-end"
	case ClassQuestion:
		return "question-mark"
	case ClassExclamation:
		return "exclamation-mark"
	default:
		return "unknown"
	}
}

// Classify maps a single character to its delimiter class, recognizing the
// halfwidth and fullwidth forms alongside the ASCII ones.
func Classify(r rune) DelimiterClass {
	switch r {
	case '\n':
		return ClassLineBreak
	case '.', '…', '。', '．', '｡':
		return ClassSentenceEnd
	case '?', '？':
		return ClassQuestion
	case '!', '！':
		return ClassExclamation
	default:
		return ClassNone
	}
}

// SilencePolicy maps delimiter classes to the silence inserted after them.
// A zero duration disables insertion for that class. Line-break silence is
// configured independently of the punctuation classes.
type SilencePolicy struct {
	// LineBreak is the silence inserted after a line break.
	LineBreak time.Duration

	// Sentence is the silence inserted after a full stop or ellipsis.
	Sentence time.Duration

	// Question is the silence inserted after a question mark.
	Question time.Duration

	// Exclamation is the silence inserted after an exclamation mark.
	Exclamation time.Duration

	// ScaleToRate divides durations by Rate so that silence keeps pace
	// with faster or slower speech.
	ScaleToRate bool

	// Rate is the configured speech rate multiplier (1.0 = normal).
	Rate float64
}

// Duration returns the configured silence for a delimiter class, scaled by
// the speech rate when rate scaling is enabled.
func (p SilencePolicy) Duration(c DelimiterClass) time.Duration {
	var d time.Duration
	switch c {
	case ClassLineBreak:
		d = p.LineBreak
	case ClassSentenceEnd:
		d = p.Sentence
	case ClassQuestion:
		d = p.Question
	case ClassExclamation:
		d = p.Exclamation
	default:
		return 0
	}

	if p.ScaleToRate && p.Rate > 0 {
		d = time.Duration(float64(d) / p.Rate)
	}
	return d
}
