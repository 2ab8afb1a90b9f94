// Package gatekeeper is an attribute-based authorization engine that gates
// HTTP requests against stored permission records.
//
// A permission names a subject selector, a resource kind and an action, and
// may carry conditions comparing attributes of the targeted resource with
// typed literals. A request is allowed when at least one matching permission
// has all of its conditions satisfied; everything else is denied.
//
//	eng, err := gatekeeper.NewEngine(
//	    gatekeeper.WithStore(memStore),
//	)
//	result, err := eng.Check(ctx, &gatekeeper.Subject{ID: "42"},
//	    gatekeeper.ParsePath(http.MethodGet, "/translation/"+translationID),
//	)
package gatekeeper

import "strings"

// Subject is the authenticated caller of a request. A nil *Subject is an
// anonymous caller.
type Subject struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}

// String returns the subject ID, or "anonymous" for a nil subject.
func (s *Subject) String() string {
	if s == nil {
		return SelectorAnonymous
	}
	return s.ID
}

// ParseRoles splits a comma separated role list, dropping blanks.
func ParseRoles(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	roles := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			roles = append(roles, p)
		}
	}
	return roles
}

// CheckRequest is what plugins receive for every check.
type CheckRequest struct {
	Subject *Subject   `json:"subject,omitempty"`
	Path    ParsedPath `json:"path"`
}

// CheckResult is the outcome of an authorization check.
type CheckResult struct {
	Allowed      bool               `json:"allowed"`
	Decision     Decision           `json:"decision"`
	Reason       string             `json:"reason,omitempty"`
	MatchedBy    []MatchInfo        `json:"matched_by,omitempty"`
	Disqualified []Disqualification `json:"disqualified,omitempty"`
	EvalTimeNs   int64              `json:"eval_time_ns"`
}

// Decision is the authorization outcome.
type Decision string

const (
	// DecisionAllow means a permission granted the request.
	DecisionAllow Decision = "allow"

	// DecisionDenyDefault means no permission matched subject, object and action.
	DecisionDenyDefault Decision = "deny_default"

	// DecisionDenyCondition means permissions matched but none had all of
	// its conditions satisfied.
	DecisionDenyCondition Decision = "deny_condition"

	// DecisionDenyError means the decision could not be made. It is always a deny.
	DecisionDenyError Decision = "deny_error"
)

// MatchInfo identifies the permission that granted a request.
type MatchInfo struct {
	PermissionID string `json:"permission_id"`
	Subject      string `json:"subject"`
	Action       string `json:"action"`
	Detail       string `json:"detail,omitempty"`
}

// Disqualification records a candidate that was skipped because one of its
// conditions could not be evaluated.
type Disqualification struct {
	PermissionID string `json:"permission_id"`
	Condition    string `json:"condition"`
	Reason       string `json:"reason"`
	Err          error  `json:"-"`
}
