package access

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/user"
)

type profileGetterMock struct {
	usr   user.User
	err   error
	delay time.Duration
	block bool // never return
}

func (m *profileGetterMock) GetByID(ctx context.Context, id string) (user.User, error) {
	if m.block {
		select {} // simulate a store that never answers
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.err != nil {
		return user.User{}, m.err
	}
	return m.usr, nil
}

func newTestConf() *core.Config {
	var conf core.Config
	conf.Server.RoleResolveTimeout = 100 * time.Millisecond
	conf.Server.MaxAuthRedirects = 3
	return &conf
}

func newTestGate(profiles ProfileGetter, conf *core.Config) (*Gate, HintCache) {
	hints := NewMemHintCache()
	resolver := NewResolver(profiles, hints, conf, core.NopLogger{})
	return NewGate(resolver, conf, core.NopLogger{}), hints
}

func TestGateDecisions(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	teacher := user.User{
		ID:          "u1",
		Roles:       []string{user.RoleTeacher},
		MadrassahID: "m1",
	}

	tests := []struct {
		name       string
		profiles   ProfileGetter
		userID     string
		req        Requirements
		wantState  State
		wantReason Reason
		wantTo     string
	}{
		{
			name:       "unauthenticated redirects to login",
			profiles:   &profileGetterMock{},
			userID:     "",
			wantState:  StateDeniedRedirecting,
			wantReason: ReasonUnauthenticated,
			wantTo:     LoginRoute,
		},
		{
			name:       "teacher allowed on teacher route",
			profiles:   &profileGetterMock{usr: teacher},
			userID:     "u1",
			req:        Requirements{RequireTeacher: true},
			wantState:  StateAllowed,
			wantReason: ReasonOK,
		},
		{
			name:       "teacher denied on admin route",
			profiles:   &profileGetterMock{usr: teacher},
			userID:     "u1",
			req:        Requirements{RequireAdmin: true},
			wantState:  StateDeniedRedirecting,
			wantReason: ReasonMissingRole,
			wantTo:     HomeRoute,
		},
		{
			name:       "admin satisfies teacher requirement",
			profiles:   &profileGetterMock{usr: user.User{ID: "u2", Roles: []string{user.RoleAdminOwner}}},
			userID:     "u2",
			req:        Requirements{RequireTeacher: true},
			wantState:  StateAllowed,
			wantReason: ReasonOK,
		},
		{
			name:       "missing capability denies",
			profiles:   &profileGetterMock{usr: teacher},
			userID:     "u1",
			req:        Requirements{RequiredCapabilities: []string{user.CapAttendanceAccess}},
			wantState:  StateDeniedRedirecting,
			wantReason: ReasonMissingCapability,
			wantTo:     HomeRoute,
		},
		{
			name:       "resolver error denies capability route",
			profiles:   &profileGetterMock{err: errors.New("store down")},
			userID:     "u1",
			req:        Requirements{RequiredCapabilities: []string{user.CapAttendanceAccess}},
			wantState:  StateDeniedRedirecting,
			wantReason: ReasonResolverError,
			wantTo:     HomeRoute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate, _ := newTestGate(tt.profiles, conf)
			dec := gate.Check(ctx, "client", tt.userID, tt.req)
			if dec.State != tt.wantState {
				t.Errorf("State = %s, want %s", dec.State, tt.wantState)
			}
			if dec.Reason != tt.wantReason {
				t.Errorf("Reason = %s, want %s", dec.Reason, tt.wantReason)
			}
			if dec.RedirectTo != tt.wantTo {
				t.Errorf("RedirectTo = %q, want %q", dec.RedirectTo, tt.wantTo)
			}
		})
	}
}

// identical inputs must always reach the same terminal state
func TestGateDeterminism(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	teacher := user.User{ID: "u1", Roles: []string{user.RoleTeacher}, MadrassahID: "m1"}
	gate, _ := newTestGate(&profileGetterMock{usr: teacher}, conf)

	req := Requirements{RequireTeacher: true}
	first := gate.Check(ctx, "client", "u1", req)
	for i := 0; i < 10; i++ {
		dec := gate.Check(ctx, "client", "u1", req)
		if dec.State != first.State || dec.Reason != first.Reason || dec.RedirectTo != first.RedirectTo {
			t.Fatalf("run %d: decision %+v differs from first %+v", i, dec, first)
		}
	}
}

// a permanently denied client gets exactly MaxAuthRedirects redirects, then
// the gate falls back to rendering with a degraded flag
func TestGateRedirectLoopBound(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	teacher := user.User{ID: "u1", Roles: []string{user.RoleTeacher}}
	gate, _ := newTestGate(&profileGetterMock{usr: teacher}, conf)

	req := Requirements{RequireAdmin: true}
	for i := 1; i <= conf.Server.MaxAuthRedirects; i++ {
		dec := gate.Check(ctx, "client", "u1", req)
		if dec.State != StateDeniedRedirecting {
			t.Fatalf("redirect %d: State = %s, want %s", i, dec.State, StateDeniedRedirecting)
		}
	}

	dec := gate.Check(ctx, "client", "u1", req)
	if dec.State != StateAllowed || dec.Reason != ReasonLoopSuppressed {
		t.Fatalf("after %d redirects: got %s/%s, want %s/%s",
			conf.Server.MaxAuthRedirects, dec.State, dec.Reason, StateAllowed, ReasonLoopSuppressed)
	}
	if !dec.Degraded {
		t.Error("loop-suppressed decision must be flagged degraded")
	}

	// other clients are unaffected
	if other := gate.Check(ctx, "client2", "u1", req); other.State != StateDeniedRedirecting {
		t.Errorf("client2 first check: State = %s, want %s", other.State, StateDeniedRedirecting)
	}
}

// the counter resets once the client is fully allowed
func TestGateRedirectCounterReset(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	teacher := user.User{ID: "u1", Roles: []string{user.RoleTeacher}}
	gate, _ := newTestGate(&profileGetterMock{usr: teacher}, conf)

	gate.Check(ctx, "client", "u1", Requirements{RequireAdmin: true}) // denied once
	if dec := gate.Check(ctx, "client", "u1", Requirements{}); dec.State != StateAllowed {
		t.Fatalf("State = %s, want %s", dec.State, StateAllowed)
	}
	for i := 1; i <= conf.Server.MaxAuthRedirects; i++ {
		dec := gate.Check(ctx, "client", "u1", Requirements{RequireAdmin: true})
		if dec.State != StateDeniedRedirecting {
			t.Fatalf("redirect %d after reset: State = %s, want %s", i, dec.State, StateDeniedRedirecting)
		}
	}
}

// a role resolution that never settles must not hang the gate past the timeout
func TestGateTimeoutFallback(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	gate, _ := newTestGate(&profileGetterMock{block: true}, conf)

	start := time.Now()
	dec := gate.Check(ctx, "client", "u1", Requirements{RequireTeacher: true})
	elapsed := time.Since(start)

	if dec.State != StateTimedOut {
		t.Fatalf("State = %s, want %s", dec.State, StateTimedOut)
	}
	if !dec.Degraded {
		t.Error("timed-out decision must be flagged degraded")
	}
	if !dec.Allowed() {
		t.Error("timed-out decision must render (fail-open)")
	}
	if elapsed > conf.Server.RoleResolveTimeout+500*time.Millisecond {
		t.Errorf("gate blocked %s, want ~%s", elapsed, conf.Server.RoleResolveTimeout)
	}
}

// a timed-out resolution serves the last cached hint
func TestGateTimeoutServesHint(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	gate, hints := newTestGate(&profileGetterMock{block: true}, conf)
	hints.Put("u1", Hint{Roles: []string{user.RoleTeacher}, MadrassahID: "m1"})

	dec := gate.Check(ctx, "client", "u1", Requirements{})
	if dec.State != StateTimedOut {
		t.Fatalf("State = %s, want %s", dec.State, StateTimedOut)
	}
	if !dec.Set.IsTeacher {
		t.Error("hinted teacher role not served")
	}
	if dec.MadrassahID != "m1" {
		t.Errorf("MadrassahID = %q, want %q", dec.MadrassahID, "m1")
	}
}

// a fetch error falls back to the hint, flagged degraded
func TestResolverErrorServesHint(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	hints := NewMemHintCache()
	hints.Put("u1", Hint{Roles: []string{user.RoleParent}})
	resolver := NewResolver(&profileGetterMock{err: errors.New("store down")}, hints, conf, core.NopLogger{})

	res := resolver.Resolve(ctx, "u1")
	if !res.FromHint {
		t.Fatal("FromHint = false, want true")
	}
	if !res.Set.IsParent {
		t.Error("hinted parent role not served")
	}
	if !res.Degraded() {
		t.Error("hint-served resolution must be degraded")
	}
}

// a successful resolve refreshes the hint cache
func TestResolverWritesHint(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	hints := NewMemHintCache()
	usr := user.User{ID: "u1", Roles: []string{user.RoleTeacher}, Capabilities: []string{user.CapDailyProgressEmail}, MadrassahID: "m1"}
	resolver := NewResolver(&profileGetterMock{usr: usr}, hints, conf, core.NopLogger{})

	if res := resolver.Resolve(ctx, "u1"); res.Degraded() || res.Err != nil {
		t.Fatalf("unexpected degraded resolution: %+v", res)
	}
	hint, ok := hints.Get("u1")
	if !ok {
		t.Fatal("hint not written")
	}
	if hint.MadrassahID != "m1" || len(hint.Roles) != 1 || hint.Roles[0] != user.RoleTeacher {
		t.Errorf("unexpected hint: %+v", hint)
	}
}

// no session resolves immediately to an empty set
func TestResolverAnonymous(t *testing.T) {
	conf := newTestConf()
	resolver := NewResolver(&profileGetterMock{block: true}, NewMemHintCache(), conf, core.NopLogger{})

	start := time.Now()
	res := resolver.Resolve(context.Background(), "")
	if time.Since(start) > 50*time.Millisecond {
		t.Error("anonymous resolve must not wait on the store")
	}
	if res.Set.IsAdmin || res.Set.IsTeacher || res.Set.IsParent || res.Set.IsAttendanceTaker || res.Err != nil {
		t.Errorf("unexpected resolution: %+v", res)
	}
}

// suppression consumes the redirect counter: the denial after a suppressed
// render starts a fresh redirect cycle instead of suppressing forever
func TestGateSuppressionRestartsCycle(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	teacher := user.User{ID: "u1", Roles: []string{user.RoleTeacher}}
	gate, _ := newTestGate(&profileGetterMock{usr: teacher}, conf)

	req := Requirements{RequireAdmin: true}
	for i := 1; i <= conf.Server.MaxAuthRedirects; i++ {
		gate.Check(ctx, "client", "u1", req)
	}
	if dec := gate.Check(ctx, "client", "u1", req); dec.Reason != ReasonLoopSuppressed {
		t.Fatalf("Reason = %s, want %s", dec.Reason, ReasonLoopSuppressed)
	}

	if dec := gate.Check(ctx, "client", "u1", req); dec.State != StateDeniedRedirecting {
		t.Errorf("post-suppression check: State = %s, want %s", dec.State, StateDeniedRedirecting)
	}

	gate.mutex.Lock()
	n := len(gate.redirects)
	gate.mutex.Unlock()
	if n != 1 {
		t.Errorf("tracked clients = %d, want 1", n)
	}
}

// the counter map is capped so one-shot clients (IP-keyed unauthenticated
// checks, typically) cannot grow it without bound
func TestGateTrackedClientCap(t *testing.T) {
	ctx := context.Background()
	conf := newTestConf()
	gate, _ := newTestGate(&profileGetterMock{}, conf)

	for i := 0; i < maxTrackedClients; i++ {
		gate.Check(ctx, fmt.Sprintf("ip-%d", i), "", Requirements{})
	}
	gate.Check(ctx, "one-more", "", Requirements{})

	gate.mutex.Lock()
	n := len(gate.redirects)
	gate.mutex.Unlock()
	if n != 1 {
		t.Errorf("tracked clients after cap = %d, want 1 (map dropped)", n)
	}
}
