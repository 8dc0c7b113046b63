package plan

import "strings"

// Plan identifies a subscription tier.
type Plan string

const (
	Basic   Plan = "basic"
	Pro     Plan = "pro"
	ProPlus Plan = "proplus"
)

var allPlans = []Plan{Basic, Pro, ProPlus}

// AllPlans returns every known plan, lowest tier first.
func AllPlans() []Plan {
	out := make([]Plan, len(allPlans))
	copy(out, allPlans)
	return out
}

// Parse maps a user-supplied plan name onto a known plan.
func Parse(value string) (Plan, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "basic", "free":
		return Basic, true
	case "pro":
		return Pro, true
	case "proplus", "pro+", "pro_plus", "pro-plus":
		return ProPlus, true
	default:
		return "", false
	}
}

// Valid reports whether the plan is a known tier.
func (p Plan) Valid() bool {
	switch p {
	case Basic, Pro, ProPlus:
		return true
	default:
		return false
	}
}

// Tier returns the plan's rank for upgrade/downgrade comparisons.
// Higher is more capable.
func (p Plan) Tier() int {
	switch p {
	case Pro:
		return 1
	case ProPlus:
		return 2
	default:
		return 0
	}
}

// DisplayName returns the customer-facing plan name.
func (p Plan) DisplayName() string {
	switch p {
	case Pro:
		return "Pro"
	case ProPlus:
		return "Pro+"
	default:
		return "Basic"
	}
}

func (p Plan) String() string {
	return string(p)
}
