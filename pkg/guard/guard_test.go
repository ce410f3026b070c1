package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/example/menuboard/pkg/apitypes"
)

var protectedTargets = []string{
	"/dashboard",
	"/dashboard?tab=menu",
	"/dashboard/feedback",
	"/admin",
	"/admin/users",
	"/setup",
}

func TestDecide_UnauthenticatedRedirectsToLogin(t *testing.T) {
	for _, target := range protectedTargets {
		for _, role := range []apitypes.Role{apitypes.RoleUser, apitypes.RoleAdmin} {
			for _, restaurant := range []bool{true, false} {
				in := Input{Authenticated: false, Role: role, RestaurantPresent: restaurant}
				d := Decide(in, target)
				assert.Equal(t, Redirect, d.Action, "target %s", target)
				assert.Equal(t, StateUnauthorized, d.State, "target %s", target)
				if under(target, PathAdmin) {
					assert.Equal(t, PathAdminLogin, d.Target)
				} else {
					assert.Equal(t, PathLogin, d.Target)
				}
			}
		}
	}
}

func TestDecide_AdminAllowedRegardlessOfRestaurant(t *testing.T) {
	for _, target := range []string{"/admin", "/admin/users", "/admin/feedback?page=2"} {
		for _, restaurant := range []bool{true, false} {
			d := Decide(Input{Authenticated: true, Role: apitypes.RoleAdmin, RestaurantPresent: restaurant}, target)
			assert.Equal(t, Allow, d.Action, "target %s", target)
			assert.Equal(t, StateAuthorized, d.State)
		}
	}
}

func TestDecide_UserForbiddenFromAdmin(t *testing.T) {
	d := Decide(Input{Authenticated: true, Role: apitypes.RoleUser, RestaurantPresent: true}, "/admin/users")
	assert.Equal(t, Redirect, d.Action)
	assert.Equal(t, PathDashboard, d.Target)
	assert.Equal(t, StateForbidden, d.State)
}

func TestDecide_Onboarding(t *testing.T) {
	notOnboarded := Input{Authenticated: true, Role: apitypes.RoleUser, RestaurantPresent: false}

	tests := []struct {
		name   string
		target string
		want   Decision
	}{
		{"dashboard root", "/dashboard", Decision{Action: Redirect, Target: PathSetup, State: StateUnonboarded}},
		{"dashboard root trailing slash", "/dashboard/", Decision{Action: Redirect, Target: PathSetup, State: StateUnonboarded}},
		{"dashboard tab", "/dashboard?tab=feedback", Decision{Action: Allow, State: StateAuthorized}},
		{"dashboard sub path", "/dashboard/menu", Decision{Action: Allow, State: StateAuthorized}},
		{"setup", "/setup", Decision{Action: Allow, State: StateUnonboarded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(notOnboarded, tt.target))
		})
	}
}

func TestDecide_OnboardedUser(t *testing.T) {
	in := Input{Authenticated: true, Role: apitypes.RoleUser, RestaurantPresent: true}

	assert.Equal(t, Allow, Decide(in, "/dashboard").Action)
	d := Decide(in, "/setup")
	assert.Equal(t, Redirect, d.Action)
	assert.Equal(t, PathDashboard, d.Target)
}

func TestDecide_LoadingAlwaysAllows(t *testing.T) {
	for _, target := range protectedTargets {
		d := Decide(Input{Loading: true}, target)
		assert.Equal(t, Allow, d.Action, "target %s", target)
		assert.Equal(t, StateResolving, d.State)
	}
}

func TestDecide_PublicRoutes(t *testing.T) {
	for _, target := range []string{"/", "/login", "/admin/login", "/menu/la-trattoria"} {
		d := Decide(Input{}, target)
		assert.Equal(t, Allow, d.Action, "target %s", target)
	}
}

func TestDecide_Idempotent(t *testing.T) {
	inputs := []Input{
		{},
		{Authenticated: true, Role: apitypes.RoleUser},
		{Authenticated: true, Role: apitypes.RoleUser, RestaurantPresent: true},
		{Authenticated: true, Role: apitypes.RoleAdmin},
		{Loading: true},
	}
	for _, in := range inputs {
		for _, target := range protectedTargets {
			assert.Equal(t, Decide(in, target), Decide(in, target))
		}
	}
}

func TestFromSnapshot(t *testing.T) {
	in := FromSnapshot(true, nil, false)
	assert.Equal(t, apitypes.RoleUser, in.Role)
	assert.False(t, in.RestaurantPresent)

	snap := &apitypes.Snapshot{
		User:       apitypes.User{ID: "u1", Role: apitypes.RoleAdmin},
		Restaurant: &apitypes.Restaurant{ID: "u1"},
	}
	in = FromSnapshot(true, snap, false)
	assert.Equal(t, apitypes.RoleAdmin, in.Role)
	assert.True(t, in.RestaurantPresent)
}
