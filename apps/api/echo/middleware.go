package echoapi

import (
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/maktabhq/maktab/core/access"
)

var (
	contextDecisionKey = "accessDecision"

	// degradedHeader warns clients that the decision engaged a fail-open
	// path (resolver timeout, hint fallback or loop suppression) and must
	// not be treated as a full authorization grant.
	degradedHeader = "X-Access-Degraded"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}

// gateMiddleware routes every request through the access gate: 401 when
// unauthenticated, 403 when denied, degraded header when a fail-open
// decision let the request through.
func gateMiddleware(gate *access.Gate, req access.Requirements) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var userID, clientKey string
			if claims, err := getContextClaims(ctx); err == nil {
				userID = claims.Subject
				clientKey = claims.Subject
			} else {
				clientKey = ctx.RealIP()
			}

			decision := gate.Check(ctx.Request().Context(), clientKey, userID, req)
			if !decision.Allowed() {
				if decision.Reason == access.ReasonUnauthenticated {
					return errUnauthorized
				}
				return errHttpForbidden
			}
			if decision.Degraded {
				ctx.Response().Header().Set(degradedHeader, "true")
			}
			ctx.Set(contextDecisionKey, decision)
			return next(ctx)
		}
	}
}

func getContextDecision(ctx echo.Context) (access.Decision, bool) {
	decision, ok := ctx.Get(contextDecisionKey).(access.Decision)
	return decision, ok
}

// contextMadrassahID scopes tenant-bound handlers: the resolved madrassah
// wins over the (possibly stale) token claim.
func contextMadrassahID(ctx echo.Context) string {
	if decision, ok := getContextDecision(ctx); ok && decision.MadrassahID != "" {
		return decision.MadrassahID
	}
	if claims, err := getContextClaims(ctx); err == nil {
		return claims.MadrassahID
	}
	return ""
}
