// Package session implements the per-call SessionContext (§4.2): a cached,
// write-through view over the host telephony session's variable store, plus
// the immutable call header and the loop-guard visit counters the
// interpreter consults.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// DefaultVisitBudget is the default per-call cap on visits to any one node.
const DefaultVisitBudget = 10

// Context is the per-call variable cache and loop-guard state. One Context
// is created per call and discarded at hangup; nothing here is shared
// across calls.
type Context struct {
	host telephony.Session

	// Immutable header, snapshotted at Initialize.
	callUUID  string
	callerID  string
	caller    string
	domain    string
	startTime int64

	mu    sync.Mutex
	cache map[string]string

	visitBudget int
	visited     map[int]int

	// Call-center callback state (§4.6, the cc_* variables) is not held
	// here; the interpreter reads it straight off the host session.
}

// New constructs a Context with the given visit budget (DefaultVisitBudget
// when <= 0); it has no host until Initialize is called.
func New(visitBudget int) *Context {
	if visitBudget <= 0 {
		visitBudget = DefaultVisitBudget
	}
	return &Context{
		cache:       make(map[string]string),
		visitBudget: visitBudget,
		visited:     make(map[int]int),
	}
}

// Initialize snapshots the immutable header from the host session,
// defaulting any absent field to "unknown", and records call_start_time as
// the current wall-clock epoch.
func (c *Context) Initialize(host telephony.Session) {
	c.host = host
	c.callUUID = orUnknown(host.CallUUID())
	c.callerID = orUnknown(host.CallerID())
	c.caller = orUnknown(host.CallerName())
	c.domain = orUnknown(host.Domain())
	c.startTime = time.Now().Unix()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func (c *Context) CallUUID() string     { return c.callUUID }
func (c *Context) CallerID() string     { return c.callerID }
func (c *Context) CallerName() string   { return c.caller }
func (c *Context) Domain() string       { return c.domain }
func (c *Context) CallStartTime() int64 { return c.startTime }

func (c *Context) IsAnswered() bool {
	return c.host != nil && c.host.Answered()
}

func (c *Context) IsReady() bool {
	return c.host != nil && c.host.Ready()
}

// GetVariable reads a variable, preferring the cache when useCache is true.
// A cache-disabled read bypasses the cache but does NOT populate it.
func (c *Context) GetVariable(name, def string, useCache bool) string {
	if useCache {
		c.mu.Lock()
		if v, ok := c.cache[name]; ok {
			c.mu.Unlock()
			return v
		}
		c.mu.Unlock()
	}

	v, ok := c.host.GetVariable(name)
	if !ok || v == "" {
		return def
	}
	if useCache {
		c.mu.Lock()
		c.cache[name] = v
		c.mu.Unlock()
	}
	return v
}

// SetVariable stringifies value (the host protocol is string-only), writes
// it to the host, and — unless updateCache is false — updates the cache
// too (write-through).
func (c *Context) SetVariable(ctx context.Context, name string, value any, updateCache bool) error {
	s := stringify(value)
	if err := c.host.SetVariable(ctx, name, s); err != nil {
		return engineerr.Wrap(engineerr.KindSessionNotReady, err, "set_variable failed")
	}
	if updateCache {
		c.mu.Lock()
		c.cache[name] = s
		c.mu.Unlock()
	}
	return nil
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (c *Context) UnsetVariable(ctx context.Context, name string) error {
	c.mu.Lock()
	delete(c.cache, name)
	c.mu.Unlock()
	return c.host.UnsetVariable(ctx, name)
}

// ClearCache drops all cached variable reads. Used after any code path that
// may have mutated host variables externally (e.g. after a bridge returns).
func (c *Context) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]string)
	c.mu.Unlock()
}

// Cleanup releases the per-call context. There is nothing to persist:
// session state does not outlive the call (§3 Lifecycle).
func (c *Context) Cleanup() {
	c.mu.Lock()
	c.cache = nil
	c.mu.Unlock()
}

// RecordVisit increments the visit counter for nodeID and reports whether
// the visit budget has been exceeded. This is the sole loop guard (§4.5).
func (c *Context) RecordVisit(nodeID int) (visits int, tripped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visited[nodeID]++
	v := c.visited[nodeID]
	return v, v > c.visitBudget
}

// VisitCount reports the current visit count for nodeID (tests use this to
// assert S1-S3's exact visit counts).
func (c *Context) VisitCount(nodeID int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visited[nodeID]
}

// Host exposes the underlying telephony session for handler families that
// need to drive it directly (playback, DTMF collection, bridging).
func (c *Context) Host() telephony.Session { return c.host }
