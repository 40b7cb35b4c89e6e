package entitlements

import "strings"

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Normalize maps arbitrary plan strings onto the known plan set.
// Unknown values fall back to free.
func Normalize(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// Rank orders plans so "best plan wins" comparisons stay in one place.
func Rank(plan Plan) int {
	switch Normalize(string(plan)) {
	case PlanPro:
		return 1
	default:
		return 0
	}
}

// MaxProjects returns how many projects a plan may create.
func MaxProjects(plan Plan) int {
	switch Normalize(string(plan)) {
	case PlanPro:
		return 50
	default:
		return 3
	}
}

// HasPrioritySupport reports whether the plan includes priority support.
func HasPrioritySupport(plan Plan) bool {
	return Normalize(string(plan)) == PlanPro
}
