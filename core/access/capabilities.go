package access

import (
	"sort"
	"strings"

	"github.com/maktabhq/maktab/core/user"
)

// CapabilitySet is the effective permission view of a profile: coarse role
// booleans plus the additive capability flags. It is the single place role
// implications are derived; consumers must not re-derive role logic from
// raw role strings.
type CapabilitySet struct {
	IsAdmin           bool
	IsTeacher         bool
	IsParent          bool
	IsAttendanceTaker bool

	flags map[string]struct{}
}

// ResolveCapabilities derives a CapabilitySet from a profile's roles and
// capability flags. It is a pure function; identical inputs always yield an
// identical set.
func ResolveCapabilities(roles, flags []string) CapabilitySet {
	set := CapabilitySet{flags: make(map[string]struct{}, len(flags))}
	for _, role := range roles {
		switch {
		case strings.HasPrefix(role, user.RoleAdmin):
			set.IsAdmin = true
		case strings.HasPrefix(role, user.RoleTeacher):
			set.IsTeacher = true
		case strings.HasPrefix(role, user.RoleParent):
			set.IsParent = true
		case strings.HasPrefix(role, user.RoleAttendanceTaker):
			set.IsAttendanceTaker = true
		}
	}
	for _, flag := range flags {
		set.flags[flag] = struct{}{}
	}
	return set
}

// HasCapability reports whether the profile holds the capability flag or a
// role that implies it: admin implies every capability, and an attendance
// taker role implies attendance access.
func (cs CapabilitySet) HasCapability(name string) bool {
	if cs.IsAdmin {
		return true
	}
	if name == user.CapAttendanceAccess && cs.IsAttendanceTaker {
		return true
	}
	_, ok := cs.flags[name]
	return ok
}

// Flags returns the raw capability flags, sorted. Role implications are not
// expanded; use HasCapability for checks.
func (cs CapabilitySet) Flags() []string {
	flags := make([]string, 0, len(cs.flags))
	for flag := range cs.flags {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	return flags
}
