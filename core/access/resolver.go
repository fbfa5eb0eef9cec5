package access

import (
	"context"
	"fmt"
	"time"

	"github.com/maktabhq/maktab/core"
	"github.com/maktabhq/maktab/core/user"
)

type (
	// ProfileGetter fetches the profile backing a session. user.ServiceInterface
	// satisfies it.
	ProfileGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// Resolution is the outcome of resolving a session's effective role.
	// TimedOut and FromHint mark degraded resolutions served without a fresh
	// profile read; callers treating the result as authoritative must check both.
	Resolution struct {
		Set         CapabilitySet
		MadrassahID string
		TimedOut    bool
		FromHint    bool
		Err         error
	}

	// Resolver turns a user ID into a CapabilitySet within a bounded time.
	// A slow profile store degrades to the last cached hint instead of
	// blocking the caller.
	Resolver struct {
		profiles ProfileGetter
		hints    HintCache
		timeout  time.Duration
		logger   core.Logger
	}
)

func NewResolver(profiles ProfileGetter, hints HintCache, conf *core.Config, logger core.Logger) *Resolver {
	return &Resolver{
		profiles: profiles,
		hints:    hints,
		timeout:  conf.Server.RoleResolveTimeout,
		logger:   logger,
	}
}

// Degraded reports whether the resolution was served without a fresh profile read.
func (r Resolution) Degraded() bool {
	return r.TimedOut || r.FromHint
}

// Resolve fetches the user's profile and derives its CapabilitySet, waiting at
// most the configured timeout. On timeout the last cached hint (if any) is
// returned with TimedOut set; the underlying fetch is not cancelled and still
// refreshes the hint cache when it completes. An empty userID resolves
// immediately to an empty set.
func (r *Resolver) Resolve(ctx context.Context, userID string) Resolution {
	if userID == "" {
		return Resolution{}
	}

	type result struct {
		usr user.User
		err error
	}
	resCh := make(chan result, 1)

	// detached context: a timed-out fetch must still complete and refresh the
	// hint cache retroactively
	go func() {
		usr, err := r.profiles.GetByID(context.Background(), userID)
		if err == nil {
			r.hints.Put(userID, Hint{
				Roles:        usr.Roles,
				Capabilities: usr.Capabilities,
				MadrassahID:  usr.MadrassahID,
				ResolvedAt:   time.Now().UTC(),
			})
		}
		resCh <- result{usr, err}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-resCh:
		if res.err != nil {
			r.logger.Warn(fmt.Sprintf("resolving role for user %s: %v", userID, res.err))
			if hint, ok := r.hints.Get(userID); ok {
				return Resolution{
					Set:         ResolveCapabilities(hint.Roles, hint.Capabilities),
					MadrassahID: hint.MadrassahID,
					FromHint:    true,
					Err:         res.err,
				}
			}
			return Resolution{Err: res.err}
		}
		return Resolution{
			Set:         ResolveCapabilities(res.usr.Roles, res.usr.Capabilities),
			MadrassahID: res.usr.MadrassahID,
		}
	case <-timer.C:
		r.logger.Warn(fmt.Sprintf("role resolution timed out after %s for user %s", r.timeout, userID))
		reso := Resolution{TimedOut: true}
		if hint, ok := r.hints.Get(userID); ok {
			reso.Set = ResolveCapabilities(hint.Roles, hint.Capabilities)
			reso.MadrassahID = hint.MadrassahID
			reso.FromHint = true
		}
		return reso
	case <-ctx.Done():
		return Resolution{Err: ctx.Err()}
	}
}
