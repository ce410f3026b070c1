// Package guard decides whether a client-side navigation may proceed.
//
// Decide is a pure function of its inputs. It performs no I/O and keeps no
// state, so it is safe to call on every render. Guards are a convenience for
// the client; the backend repeats the same role and ownership checks.
package guard

import (
	"net/url"
	"strings"

	"github.com/example/menuboard/pkg/apitypes"
)

// Route paths known to the guards.
const (
	PathHome       = "/"
	PathLogin      = "/login"
	PathSetup      = "/setup"
	PathDashboard  = "/dashboard"
	PathAdmin      = "/admin"
	PathAdminLogin = "/admin/login"
	PathMenuPrefix = "/menu/"
)

// Action is what the caller should do with the navigation.
type Action int

const (
	Allow Action = iota
	Redirect
)

func (a Action) String() string {
	switch a {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// State is the resolution state of a protected route.
type State string

const (
	StateResolving    State = "RESOLVING"
	StateAuthorized   State = "AUTHORIZED"
	StateUnauthorized State = "UNAUTHORIZED"
	StateUnonboarded  State = "UNONBOARDED"
	StateForbidden    State = "FORBIDDEN"
)

// Input is everything a guard is allowed to look at.
type Input struct {
	Authenticated     bool
	Role              apitypes.Role
	RestaurantPresent bool
	Loading           bool
}

// FromSnapshot builds an Input from an identity flag and a backend snapshot.
// A nil snapshot with an identity present means the role is not known yet,
// which is treated as a plain user.
func FromSnapshot(authenticated bool, snap *apitypes.Snapshot, loading bool) Input {
	in := Input{Authenticated: authenticated, Role: apitypes.RoleUser, Loading: loading}
	if snap != nil {
		in.Role = snap.User.Role
		in.RestaurantPresent = snap.Restaurant != nil
	}
	return in
}

// Decision is the outcome of a guard evaluation.
type Decision struct {
	Action Action
	Target string
	State  State
}

func allow(state State) Decision { return Decision{Action: Allow, State: state} }

func redirect(target string, state State) Decision {
	return Decision{Action: Redirect, Target: target, State: state}
}

// Decide evaluates target (a path, optionally with a query string) for in.
func Decide(in Input, target string) Decision {
	if in.Loading {
		return allow(StateResolving)
	}

	path, tab := splitTarget(target)

	switch {
	case isPublic(path):
		return allow(StateAuthorized)
	case under(path, PathAdmin):
		return decideAdmin(in)
	case under(path, PathDashboard):
		return decideDashboard(in, path, tab)
	case path == PathSetup:
		return decideSetup(in)
	default:
		return allow(StateAuthorized)
	}
}

func decideAdmin(in Input) Decision {
	if !in.Authenticated {
		return redirect(PathAdminLogin, StateUnauthorized)
	}
	switch in.Role {
	case apitypes.RoleAdmin:
		return allow(StateAuthorized)
	case apitypes.RoleUser:
		return redirect(PathDashboard, StateForbidden)
	default:
		return redirect(PathLogin, StateForbidden)
	}
}

func decideDashboard(in Input, path, tab string) Decision {
	if !in.Authenticated {
		return redirect(PathLogin, StateUnauthorized)
	}
	switch in.Role {
	case apitypes.RoleAdmin:
		return allow(StateAuthorized)
	case apitypes.RoleUser:
		if !in.RestaurantPresent && path == PathDashboard && tab == "" {
			return redirect(PathSetup, StateUnonboarded)
		}
		return allow(StateAuthorized)
	default:
		return redirect(PathLogin, StateForbidden)
	}
}

func decideSetup(in Input) Decision {
	if !in.Authenticated {
		return redirect(PathLogin, StateUnauthorized)
	}
	switch in.Role {
	case apitypes.RoleAdmin:
		return allow(StateAuthorized)
	case apitypes.RoleUser:
		if in.RestaurantPresent {
			return redirect(PathDashboard, StateAuthorized)
		}
		return allow(StateUnonboarded)
	default:
		return redirect(PathLogin, StateForbidden)
	}
}

func isPublic(path string) bool {
	switch path {
	case PathHome, PathLogin, PathAdminLogin:
		return true
	}
	return strings.HasPrefix(path, PathMenuPrefix)
}

// under reports whether path is root or a sub-path of root.
func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// splitTarget returns the cleaned path and the value of the "tab" query
// parameter. Unparseable targets are treated as the raw path.
func splitTarget(target string) (string, string) {
	u, err := url.Parse(target)
	if err != nil {
		return normalize(target), ""
	}
	return normalize(u.Path), u.Query().Get("tab")
}

func normalize(path string) string {
	if path == "" {
		return PathHome
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
