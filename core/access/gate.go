package access

import (
	"context"
	"fmt"
	"sync"

	"github.com/maktabhq/maktab/core"
)

// Gate states. CHECKING is transient; the terminal states of a check are
// ALLOWED, TIMED_OUT (fail-open render) or DENIED_REDIRECTING.
type State string

const (
	StateChecking          State = "CHECKING"
	StateTimedOut          State = "TIMED_OUT"
	StateAllowed           State = "ALLOWED"
	StateDeniedRedirecting State = "DENIED_REDIRECTING"
)

// Reason codes attached to every Decision.
type Reason string

const (
	ReasonOK                Reason = "ok"
	ReasonTimedOut          Reason = "timed_out"
	ReasonLoopSuppressed    Reason = "loop_suppressed"
	ReasonUnauthenticated   Reason = "unauthenticated"
	ReasonMissingRole       Reason = "missing_role"
	ReasonMissingCapability Reason = "missing_capability"
	ReasonResolverError     Reason = "resolver_error"
)

// Redirect targets. Unauthenticated users go to login; identified but
// under-privileged users go home.
const (
	LoginRoute = "/login"
	HomeRoute  = "/"
)

// maxTrackedClients caps the redirect counter map. Counters are loop-
// accounting hints, so when the cap is hit they are dropped wholesale; a
// denied client merely gets a fresh redirect cycle.
const maxTrackedClients = 10000

type (
	// Requirements describes what a route demands of the caller beyond being
	// authenticated.
	Requirements struct {
		RequireAdmin         bool     `json:"require_admin"`
		RequireTeacher       bool     `json:"require_teacher"`
		RequiredCapabilities []string `json:"required_capabilities"`
	}

	// Decision is the outcome of a gate check. Degraded marks fail-open
	// outcomes (timeout fallback, hint fallback, loop suppression) that must
	// not be treated as an authorization grant; privileged operations re-check
	// server-side regardless.
	Decision struct {
		State       State       `json:"state"`
		Reason      Reason      `json:"reason"`
		RedirectTo  string      `json:"redirect_to,omitempty"`
		Degraded    bool        `json:"degraded"`
		MadrassahID string      `json:"madrassah_id,omitempty"`
		Set         CapabilitySet `json:"-"`
	}

	// Gate decides, per check, whether a caller may proceed to a route. It
	// tracks a per-client redirect counter so a permanently denied client is
	// not bounced in a loop forever: past the bound it falls back to rendering
	// with a degraded flag.
	Gate struct {
		resolver     *Resolver
		logger       core.Logger
		maxRedirects int

		mutex     sync.Mutex
		redirects map[string]int
	}
)

func (r Requirements) IsEmpty() bool {
	return !r.RequireAdmin && !r.RequireTeacher && len(r.RequiredCapabilities) == 0
}

// Allowed reports whether the decision lets the caller proceed.
func (d Decision) Allowed() bool {
	return d.State == StateAllowed || d.State == StateTimedOut
}

func NewGate(resolver *Resolver, conf *core.Config, logger core.Logger) *Gate {
	return &Gate{
		resolver:     resolver,
		logger:       logger,
		maxRedirects: conf.Server.MaxAuthRedirects,
		redirects:    make(map[string]int),
	}
}

// Check resolves the caller's role and decides against the route requirements.
// clientKey identifies the navigating client (session ID) for redirect-loop
// accounting; the counter resets on any fully ALLOWED decision.
func (g *Gate) Check(ctx context.Context, clientKey, userID string, req Requirements) Decision {
	if userID == "" {
		return g.deny(clientKey, ReasonUnauthenticated, LoginRoute)
	}

	res := g.resolver.Resolve(ctx, userID)

	// fail-open for availability, not authorization: a timed-out resolution
	// renders with whatever the hint cache held, flagged degraded
	if res.TimedOut {
		return Decision{
			State:       StateTimedOut,
			Reason:      ReasonTimedOut,
			Degraded:    true,
			MadrassahID: res.MadrassahID,
			Set:         res.Set,
		}
	}

	if res.Err != nil && !res.FromHint {
		if req.IsEmpty() {
			return Decision{State: StateAllowed, Reason: ReasonOK, Degraded: true}
		}
		return g.deny(clientKey, ReasonResolverError, HomeRoute)
	}

	if req.RequireAdmin && !res.Set.IsAdmin {
		return g.deny(clientKey, ReasonMissingRole, HomeRoute)
	}
	// an admin satisfies a teacher requirement
	if req.RequireTeacher && !(res.Set.IsTeacher || res.Set.IsAdmin) {
		return g.deny(clientKey, ReasonMissingRole, HomeRoute)
	}
	for _, capability := range req.RequiredCapabilities {
		if !res.Set.HasCapability(capability) {
			return g.deny(clientKey, ReasonMissingCapability, HomeRoute)
		}
	}

	g.resetRedirects(clientKey)
	return Decision{
		State:       StateAllowed,
		Reason:      ReasonOK,
		Degraded:    res.FromHint,
		MadrassahID: res.MadrassahID,
		Set:         res.Set,
	}
}

func (g *Gate) deny(clientKey string, reason Reason, redirectTo string) Decision {
	g.mutex.Lock()
	if _, ok := g.redirects[clientKey]; !ok && len(g.redirects) >= maxTrackedClients {
		g.redirects = make(map[string]int)
	}
	g.redirects[clientKey]++
	count := g.redirects[clientKey]
	if count > g.maxRedirects {
		// suppression consumes the counter; a later denial starts a new cycle
		delete(g.redirects, clientKey)
	}
	g.mutex.Unlock()

	if count > g.maxRedirects {
		g.logger.Warn(fmt.Sprintf("redirect loop suppressed for client %s after %d redirects (last denial: %s)",
			clientKey, g.maxRedirects, reason))
		return Decision{State: StateAllowed, Reason: ReasonLoopSuppressed, Degraded: true}
	}
	return Decision{State: StateDeniedRedirecting, Reason: reason, RedirectTo: redirectTo}
}

func (g *Gate) resetRedirects(clientKey string) {
	g.mutex.Lock()
	delete(g.redirects, clientKey)
	g.mutex.Unlock()
}
