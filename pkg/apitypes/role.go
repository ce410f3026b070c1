package apitypes

import "fmt"

// Role is the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a stored or transmitted value into a Role.
// Anything outside the closed set is rejected.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("invalid role %q", s)
	}
}

// IsAdmin reports whether the role grants access to the admin console.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleUser:
		return false
	default:
		return false
	}
}

// Plan is the closed set of subscription plans.
type Plan string

const (
	PlanTrial   Plan = "trial"
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
)

// ParsePlan converts a value into a Plan, rejecting unknown plans.
func ParsePlan(s string) (Plan, error) {
	switch Plan(s) {
	case PlanTrial, PlanBasic, PlanPremium:
		return Plan(s), nil
	default:
		return "", fmt.Errorf("invalid plan %q", s)
	}
}

// Paid reports whether the plan is one of the paid tiers.
func (p Plan) Paid() bool {
	switch p {
	case PlanBasic, PlanPremium:
		return true
	default:
		return false
	}
}
