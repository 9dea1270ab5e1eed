package speech

import "errors"

// Common errors for the speech task pipeline.
var (
	// ErrEngineRejected is returned when the engine declined to enqueue an
	// utterance. Fatal for the task; there are no retries.
	ErrEngineRejected = errors.New("engine rejected the utterance")

	// ErrTaskAlreadyStarted is returned when Begin is called twice.
	ErrTaskAlreadyStarted = errors.New("task already started")

	// ErrTaskFinished is returned for operations on a terminal task.
	ErrTaskFinished = errors.New("task already finished")

	// ErrInputRead wraps a stream read failure. Fatal, not retried.
	ErrInputRead = errors.New("input stream read failed")

	// ErrNoEngine is returned when a task is constructed without an engine.
	ErrNoEngine = errors.New("no speech engine configured")
)
