package core

import (
	"errors"
	"testing"
	"time"
)

func testSnapshot() []byte {
	return []byte(`{
		"account_id": "acct-1",
		"flags": [
			{
				"name": "checkout.flow",
				"state": "ACTIVE",
				"variants": [{"name": "control", "value": false}, {"name": "treatment", "value": true}],
				"default_value": false,
				"rules": [
					{"name": "r1", "bucket_count": 100, "assignments": [
						{"variant_ref": "treatment", "range_start": 0, "range_end": 100}
					]}
				]
			}
		],
		"client_credentials": [
			{"client_id": "c1", "secret": "sekrit"}
		]
	}`)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(FixedClock{At: time.Unix(1000, 0)}, EngineConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := e.SetState(testSnapshot(), "acct-1"); err != nil {
		t.Fatalf("SetState: %v", err)
	}
	return e
}

func TestEngineSetStateRejectsInvalidSnapshot(t *testing.T) {
	e, err := NewEngine(SystemClock{}, EngineConfig{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	err = e.SetState([]byte(`not json`), "acct")
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestEngineResolveUnauthenticated(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ResolveWithSticky(ResolveWithStickyRequest{
		Flags:        []string{"checkout.flow"},
		ClientSecret: "wrong-secret",
	})
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
}

func TestEngineResolveSuccessAssignsResolveID(t *testing.T) {
	e := newTestEngine(t)
	result, err := e.ResolveWithSticky(ResolveWithStickyRequest{
		Flags:             []string{"checkout.flow"},
		EvaluationContext: EvaluationContext{TargetingKey: "u1"},
		ClientSecret:      "sekrit",
		Apply:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Response.ResolveID == "" {
		t.Fatal("expected a non-empty resolve_id")
	}
	if len(result.Response.ResolvedFlags) != 1 || result.Response.ResolvedFlags[0].Variant != "treatment" {
		t.Fatalf("unexpected resolved flags: %+v", result.Response.ResolvedFlags)
	}
}

func TestEngineFlushLogsAfterApply(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ResolveWithSticky(ResolveWithStickyRequest{
		Flags:             []string{"checkout.flow"},
		EvaluationContext: EvaluationContext{TargetingKey: "u1"},
		ClientSecret:      "sekrit",
		Apply:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, err := e.FlushLogs(1 << 20)
	if err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected non-empty flush output after an apply=true resolve")
	}
}

func TestEngineSetStateSwapPreservesPendingLogs(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ResolveWithSticky(ResolveWithStickyRequest{
		Flags:             []string{"checkout.flow"},
		EvaluationContext: EvaluationContext{TargetingKey: "u1"},
		ClientSecret:      "sekrit",
		Apply:             true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.SetState(testSnapshot(), "acct-1"); err != nil {
		t.Fatalf("unexpected error on second set_state: %v", err)
	}
	out, err := e.FlushLogs(1 << 20)
	if err != nil {
		t.Fatalf("unexpected flush error: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected the pre-swap exposure record to survive into the new state's accumulator")
	}
}

func TestEngineResolveDeterministic(t *testing.T) {
	e := newTestEngine(t)
	req := ResolveWithStickyRequest{
		Flags:             []string{"checkout.flow"},
		EvaluationContext: EvaluationContext{TargetingKey: "fixed-unit"},
		ClientSecret:      "sekrit",
		Apply:             false,
	}
	r1, err := e.ResolveWithSticky(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r2, err := e.ResolveWithSticky(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(r1.Response.ResolvedFlags) != len(r2.Response.ResolvedFlags) {
		t.Fatal("expected identical resolved-flag counts across repeated calls")
	}
	for i := range r1.Response.ResolvedFlags {
		if r1.Response.ResolvedFlags[i].Variant != r2.Response.ResolvedFlags[i].Variant {
			t.Fatalf("expected deterministic variant assignment, got %q vs %q",
				r1.Response.ResolvedFlags[i].Variant, r2.Response.ResolvedFlags[i].Variant)
		}
	}
}
