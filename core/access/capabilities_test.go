package access

import (
	"testing"

	"github.com/maktabhq/maktab/core/user"
)

func TestResolveCapabilities(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		flags []string
		check func(t *testing.T, set CapabilitySet)
	}{
		{
			name: "no roles no flags",
			check: func(t *testing.T, set CapabilitySet) {
				if set.IsAdmin || set.IsTeacher || set.IsParent || set.IsAttendanceTaker {
					t.Errorf("expected empty set, got %+v", set)
				}
				if set.HasCapability(user.CapAttendanceAccess) {
					t.Error("empty set must not hold capabilities")
				}
			},
		},
		{
			name:  "teacher role only",
			roles: []string{user.RoleTeacher},
			check: func(t *testing.T, set CapabilitySet) {
				if !set.IsTeacher {
					t.Error("IsTeacher = false")
				}
				if set.HasCapability(user.CapAttendanceAccess) {
					t.Error("teacher alone must not have attendance access")
				}
			},
		},
		{
			name:  "teacher with attendance flag",
			roles: []string{user.RoleTeacher},
			flags: []string{user.CapAttendanceAccess},
			check: func(t *testing.T, set CapabilitySet) {
				if !set.HasCapability(user.CapAttendanceAccess) {
					t.Error("flag not honored")
				}
				if set.HasCapability(user.CapDailyProgressEmail) {
					t.Error("unheld flag must not be honored")
				}
			},
		},
		{
			name:  "attendance taker role implies attendance access",
			roles: []string{user.RoleAttendanceTaker},
			check: func(t *testing.T, set CapabilitySet) {
				if !set.HasCapability(user.CapAttendanceAccess) {
					t.Error("attendance taker must have attendance access")
				}
			},
		},
		{
			name:  "role prefixes match sub-roles",
			roles: []string{user.RoleAdminPrincipal},
			check: func(t *testing.T, set CapabilitySet) {
				if !set.IsAdmin {
					t.Error("admin:principal must set IsAdmin")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ResolveCapabilities(tt.roles, tt.flags))
		})
	}
}

// an admin must hold every capability a teacher or attendance taker would
func TestCapabilityMonotonicity(t *testing.T) {
	admin := ResolveCapabilities([]string{user.RoleAdmin}, nil)
	others := []CapabilitySet{
		ResolveCapabilities([]string{user.RoleTeacher}, user.AllCapabilities),
		ResolveCapabilities([]string{user.RoleAttendanceTaker}, nil),
	}
	for _, capability := range user.AllCapabilities {
		for _, other := range others {
			if other.HasCapability(capability) && !admin.HasCapability(capability) {
				t.Errorf("admin missing capability %q held by a lesser role", capability)
			}
		}
		if !admin.HasCapability(capability) {
			t.Errorf("admin missing capability %q", capability)
		}
	}
}

func TestCapabilitySetFlags(t *testing.T) {
	set := ResolveCapabilities(nil, []string{user.CapDailyProgressEmail, user.CapAttendanceAccess})
	flags := set.Flags()
	want := []string{user.CapAttendanceAccess, user.CapDailyProgressEmail}
	if len(flags) != len(want) {
		t.Fatalf("Flags() = %v, want %v", flags, want)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Errorf("Flags()[%d] = %q, want %q", i, flags[i], want[i])
		}
	}
}
