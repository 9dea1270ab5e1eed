package speech

import "time"

// QueueMode controls whether a new utterance interrupts or appends to the
// engine's pending speech queue.
type QueueMode int

const (
	// QueueAdd appends the utterance behind whatever is already queued.
	QueueAdd QueueMode = iota
	// QueueFlush drops the pending queue and speaks immediately.
	QueueFlush
)

// Engine synthesis error codes, delivered through Callback.OnError.
const (
	// ErrorGeneric is an unspecified synthesis failure.
	ErrorGeneric = -1
	// ErrorSynthesis indicates the engine failed to synthesize the input.
	ErrorSynthesis = -3
	// ErrorService indicates a failure of the underlying speech service.
	ErrorService = -4
	// ErrorOutput indicates a failure writing or playing the output.
	ErrorOutput = -5
	// ErrorNetwork indicates a network connectivity failure.
	ErrorNetwork = -6
	// ErrorNetworkTimeout indicates a network operation timed out.
	ErrorNetworkTimeout = -7
	// ErrorInvalidRequest indicates the request itself was invalid.
	ErrorInvalidRequest = -8
	// ErrorVoiceDataMissing indicates required voice data is not installed.
	ErrorVoiceDataMissing = -9
)

// ErrorCategory maps an engine error code to a user-facing category.
// Unmapped codes fall back to the generic category.
func ErrorCategory(code int) string {
	switch code {
	case ErrorSynthesis:
		return "synthesis"
	case ErrorService:
		return "service"
	case ErrorOutput:
		return "output"
	case ErrorNetwork:
		return "network"
	case ErrorNetworkTimeout:
		return "network-timeout"
	case ErrorInvalidRequest:
		return "invalid-request"
	case ErrorVoiceDataMissing:
		return "voice-data-missing"
	default:
		return "generic"
	}
}

// Callback receives asynchronous per-utterance notifications from an
// Engine. Callbacks for one task may originate from any engine thread but
// arrive in utterance order; the receiving task serializes them internally.
type Callback interface {
	// OnStart fires when the engine begins processing an utterance.
	OnStart(utteranceID string)

	// OnDone fires when an utterance's speech or silence has completed.
	OnDone(utteranceID string)

	// OnError fires when synthesis of an utterance failed. code is one of
	// the Error* constants.
	OnError(utteranceID string, code int)

	// OnStop fires when the engine was stopped externally. interrupted
	// indicates the utterance was cut off mid-speech.
	OnStop(utteranceID string, interrupted bool)
}

// Engine is the asynchronous speech synthesis collaborator. Submission
// methods return whether the engine accepted the unit; completion is
// reported later through the bound Callback.
type Engine interface {
	// Speak enqueues text for live speech under the given utterance id.
	Speak(text string, mode QueueMode, utteranceID string) bool

	// EnqueueSilence schedules d of silence as its own queued unit.
	EnqueueSilence(d time.Duration, utteranceID string) bool

	// SynthesizeToFile writes the synthesized speech for text to outFile
	// as a PCM WAV file.
	SynthesizeToFile(text, outFile, utteranceID string) bool

	// MaxInputLength returns the engine's maximum speech input length in
	// characters, or 0 when the engine does not report one.
	MaxInputLength() int

	// SetCallback binds (or, with nil, unbinds) the receiver of this
	// engine's utterance notifications.
	SetCallback(cb Callback)

	// Stop cancels all queued and in-flight utterances.
	Stop()

	// Close releases the engine's resources. The engine is unusable
	// afterwards.
	Close() error
}
