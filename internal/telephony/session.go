// Package telephony defines the narrow host-session contract the engine
// consumes (§6): call answering, media playback, DTMF collection, bridging,
// and recording. The softswitch host itself is out of scope; this package
// only specifies the interface and ships an in-memory fake for tests,
// mirroring how the teacher depends only on storage.AudioStore's interface
// and supplies NewLocalStore as the default, swappable implementation.
package telephony

import (
	"context"
	"net/http"
	"time"
)

// PlaybackOptions controls a Playback call.
type PlaybackOptions struct {
	// MaxDigits, when > 0, collects DTMF input during/after playback
	// (the "play + collect" handler variants).
	MaxDigits int
	Timeout   time.Duration
}

// DigitOptions controls a CollectDigits call.
type DigitOptions struct {
	MinDigits  int
	MaxDigits  int
	Terminator string
	Timeout    time.Duration
}

// SilenceOptions tunes WaitForSilence.
type SilenceOptions struct {
	SilenceThreshold time.Duration
	Lookback         time.Duration
	Iterations       int
	Interval         time.Duration
}

// DefaultSilenceOptions is the spec-tuned default: 500ms silence, 1s
// lookback, 5 iterations, 100ms interval.
var DefaultSilenceOptions = SilenceOptions{
	SilenceThreshold: 500 * time.Millisecond,
	Lookback:         1 * time.Second,
	Iterations:       5,
	Interval:         100 * time.Millisecond,
}

// RecordOptions controls a Record call.
type RecordOptions struct {
	MaxSeconds int
}

// RecordResult reports the outcome of a recording operation.
type RecordResult struct {
	Path      string
	LengthSec float64
	SizeBytes int64
}

// Session is the per-call host contract. Implementations must be safe to
// call from a single goroutine per call; the engine never calls into the
// same Session concurrently.
type Session interface {
	CallUUID() string
	CallerID() string
	CallerName() string
	Domain() string
	CallStartTime() time.Time

	Ready() bool
	Answered() bool
	Answer(ctx context.Context) error
	Hangup(ctx context.Context) error

	GetVariable(name string) (string, bool)
	SetVariable(ctx context.Context, name, value string) error
	UnsetVariable(ctx context.Context, name string) error

	Playback(ctx context.Context, path string, opts PlaybackOptions) (digits string, err error)
	CollectDigits(ctx context.Context, opts DigitOptions) (string, error)
	WaitForSilence(ctx context.Context, opts SilenceOptions) error
	Sleep(ctx context.Context, d time.Duration)

	Speak(ctx context.Context, text string) error
	SetTTSParams(ctx context.Context, engine, voice string) error

	Bridge(ctx context.Context, target string, attended bool) error
	Enqueue(ctx context.Context, queue string, vars map[string]string) error
	Record(ctx context.Context, path string, opts RecordOptions) (RecordResult, error)

	ExecuteString(ctx context.Context, cmd string) (string, error)

	ScriptDir() string
	SoundsDir() string
}

// HTTPDoer is the narrow contract the api handler family and auth cache
// depend on, satisfied by *http.Client and by test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

var _ HTTPDoer = (*http.Client)(nil)
