package session

import (
	"context"
	"testing"

	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// Invariant 8 — write-through cache: after set_variable(k, v),
// get_variable(k) with cache enabled returns v AND a cache-bypass read
// also returns v (stringified).
func TestWriteThroughCache(t *testing.T) {
	host := telephony.NewFakeSession("call-1")
	sc := New(0)
	sc.Initialize(host)
	ctx := context.Background()

	if err := sc.SetVariable(ctx, "greeting", "hello", true); err != nil {
		t.Fatalf("SetVariable() error = %v", err)
	}

	if got := sc.GetVariable("greeting", "", true); got != "hello" {
		t.Fatalf("GetVariable(cache=true) = %q, want hello", got)
	}
	if got := sc.GetVariable("greeting", "", false); got != "hello" {
		t.Fatalf("GetVariable(cache=false) = %q, want hello", got)
	}
	if got, _ := host.GetVariable("greeting"); got != "hello" {
		t.Fatalf("host variable = %q, want hello (write-through to host)", got)
	}
}

// Invariant 7 — idempotent set_variable: set(k,v); set(k,v) is
// observationally equivalent to set(k,v) alone.
func TestIdempotentSetVariable(t *testing.T) {
	host := telephony.NewFakeSession("call-2")
	sc := New(0)
	sc.Initialize(host)
	ctx := context.Background()

	if err := sc.SetVariable(ctx, "count", "5", true); err != nil {
		t.Fatal(err)
	}
	if err := sc.SetVariable(ctx, "count", "5", true); err != nil {
		t.Fatal(err)
	}
	if got := sc.GetVariable("count", "", true); got != "5" {
		t.Fatalf("GetVariable() = %q, want 5", got)
	}
}

// A cache-disabled read bypasses the cache but does NOT populate it: once
// the host value changes underneath, a subsequent cached read still
// observes the stale cached value, proving the bypass never wrote through.
func TestCacheBypassReadDoesNotPopulateCache(t *testing.T) {
	host := telephony.NewFakeSession("call-3")
	sc := New(0)
	sc.Initialize(host)
	ctx := context.Background()

	host.SetVariable(ctx, "ext", "100")
	if got := sc.GetVariable("ext", "", false); got != "100" {
		t.Fatalf("bypass read = %q, want 100", got)
	}

	host.SetVariable(ctx, "ext", "200")
	if got := sc.GetVariable("ext", "", true); got != "200" {
		t.Fatalf("cached read after host change = %q, want 200 (bypass must not have populated the cache)", got)
	}
}

// ClearCache drops cached reads so a subsequent read observes the host's
// current value rather than a stale cached one.
func TestClearCacheForcesHostRead(t *testing.T) {
	host := telephony.NewFakeSession("call-4")
	sc := New(0)
	sc.Initialize(host)
	ctx := context.Background()

	if err := sc.SetVariable(ctx, "agent", "1001", true); err != nil {
		t.Fatal(err)
	}
	host.SetVariable(ctx, "agent", "1002") // external mutation, e.g. after a bridge
	if got := sc.GetVariable("agent", "", true); got != "1001" {
		t.Fatalf("cached read before ClearCache = %q, want stale 1001", got)
	}

	sc.ClearCache()
	if got := sc.GetVariable("agent", "", true); got != "1002" {
		t.Fatalf("cached read after ClearCache = %q, want fresh 1002", got)
	}
}

// Initialize defaults every absent immutable header field to "unknown".
func TestInitializeDefaultsAbsentHeaderFieldsToUnknown(t *testing.T) {
	host := telephony.NewFakeSession("")
	sc := New(0)
	sc.Initialize(host)

	if sc.CallUUID() != "unknown" {
		t.Fatalf("CallUUID() = %q, want unknown", sc.CallUUID())
	}
	if sc.CallerID() != "unknown" {
		t.Fatalf("CallerID() = %q, want unknown", sc.CallerID())
	}
}

// RecordVisit trips only once the budget is exceeded, not on the Nth visit
// itself.
func TestRecordVisitTripsOnlyAfterBudgetExceeded(t *testing.T) {
	sc := New(3)
	for i := 1; i <= 3; i++ {
		visits, tripped := sc.RecordVisit(42)
		if tripped {
			t.Fatalf("RecordVisit() tripped on visit %d, want trip only after budget exceeded", visits)
		}
	}
	visits, tripped := sc.RecordVisit(42)
	if !tripped || visits != 4 {
		t.Fatalf("RecordVisit() on 4th visit = (%d, %v), want (4, true)", visits, tripped)
	}
}
