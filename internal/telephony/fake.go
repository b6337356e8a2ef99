package telephony

import (
	"context"
	"sync"
	"time"
)

// FakeSession is an in-memory Session used by the engine's own tests and by
// test harnesses for handler families. It records every call made to it so
// tests can assert on interactions (playback paths, bridged targets, ...).
type FakeSession struct {
	mu sync.Mutex

	uuid       string
	callerID   string
	callerName string
	domain     string
	startTime  time.Time

	ready    bool
	answered bool
	hungUp   bool
	vars     map[string]string

	scriptDir string
	soundsDir string

	// Scripted responses, consumed in order; tests populate these to drive
	// the interpreter down a specific path.
	NextDigits []string
	// PlaybackErr, when set, is returned by the next Playback call.
	PlaybackErr error

	// Recorded interactions for assertions.
	Playbacks []string
	Bridges   []string
	Enqueues  []string
	Spoken    []string
	Recorded  []string
}

// NewFakeSession creates a ready, unanswered fake session.
func NewFakeSession(uuid string) *FakeSession {
	return &FakeSession{
		uuid:      uuid,
		startTime: time.Unix(0, 0),
		ready:     true,
		vars:      make(map[string]string),
		scriptDir: "/etc/ivr",
		soundsDir: "/var/lib/ivr/sounds",
	}
}

func (f *FakeSession) CallUUID() string            { return f.uuid }
func (f *FakeSession) CallerID() string            { return f.callerID }
func (f *FakeSession) CallerName() string          { return f.callerName }
func (f *FakeSession) Domain() string              { return f.domain }
func (f *FakeSession) CallStartTime() time.Time    { return f.startTime }
func (f *FakeSession) ScriptDir() string            { return f.scriptDir }
func (f *FakeSession) SoundsDir() string            { return f.soundsDir }

func (f *FakeSession) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready && !f.hungUp
}

func (f *FakeSession) Answered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answered
}

func (f *FakeSession) Answer(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = true
	return nil
}

// Hangup is idempotent: a second call is a no-op, resolving the source's
// literal double-hangup-after-timeout behavior without special-casing it
// in the interpreter.
func (f *FakeSession) Hangup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hungUp = true
	return nil
}

func (f *FakeSession) HungUp() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hungUp
}

func (f *FakeSession) GetVariable(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.vars[name]
	return v, ok
}

func (f *FakeSession) SetVariable(ctx context.Context, name, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vars[name] = value
	return nil
}

func (f *FakeSession) UnsetVariable(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vars, name)
	return nil
}

func (f *FakeSession) Playback(ctx context.Context, path string, opts PlaybackOptions) (string, error) {
	f.mu.Lock()
	f.Playbacks = append(f.Playbacks, path)
	if f.PlaybackErr != nil {
		err := f.PlaybackErr
		f.PlaybackErr = nil
		f.mu.Unlock()
		return "", err
	}
	f.mu.Unlock()
	if opts.MaxDigits > 0 {
		return f.popDigits(), nil
	}
	return "", nil
}

func (f *FakeSession) CollectDigits(ctx context.Context, opts DigitOptions) (string, error) {
	return f.popDigits(), nil
}

func (f *FakeSession) popDigits() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.NextDigits) == 0 {
		return ""
	}
	d := f.NextDigits[0]
	f.NextDigits = f.NextDigits[1:]
	return d
}

func (f *FakeSession) WaitForSilence(ctx context.Context, opts SilenceOptions) error { return nil }
func (f *FakeSession) Sleep(ctx context.Context, d time.Duration)                    {}

func (f *FakeSession) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Spoken = append(f.Spoken, text)
	return nil
}

func (f *FakeSession) SetTTSParams(ctx context.Context, engine, voice string) error { return nil }

func (f *FakeSession) Bridge(ctx context.Context, target string, attended bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Bridges = append(f.Bridges, target)
	return nil
}

func (f *FakeSession) Enqueue(ctx context.Context, queue string, vars map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enqueues = append(f.Enqueues, queue)
	return nil
}

func (f *FakeSession) Record(ctx context.Context, path string, opts RecordOptions) (RecordResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Recorded = append(f.Recorded, path)
	return RecordResult{Path: path, LengthSec: 1.5, SizeBytes: 2048}, nil
}

func (f *FakeSession) ExecuteString(ctx context.Context, cmd string) (string, error) {
	return "", nil
}

var _ Session = (*FakeSession)(nil)
