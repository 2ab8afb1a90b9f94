package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/gatekeeper/permission"
)

// Decide grants path when at least one candidate has every condition
// satisfied. Candidates are tried in order and the first grant wins.
//
// A candidate whose conditions cannot be evaluated (unknown attribute, a
// literal of the wrong kind, a missing resource or attribute) is recorded in
// CheckResult.Disqualified and skipped. Decide returns an error only when a
// decision could not be reached at all: the context ended or the resolver
// failed for a reason other than the above. The result is a deny in that case.
//
// Decide never mutates candidates and does no I/O beyond resolver calls.
func Decide(ctx context.Context, candidates []*permission.Permission, path ParsedPath, resolver AttributeResolver) (*CheckResult, error) {
	if len(candidates) == 0 {
		return &CheckResult{
			Decision: DecisionDenyDefault,
			Reason:   fmt.Sprintf("no permission for %s on %s", path.Method, path.Kind),
		}, nil
	}

	var disq []Disqualification
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return denyError("evaluation cancelled", disq), err
		}

		ok, bad, err := evaluateConditions(ctx, cand, path, resolver)
		switch {
		case err != nil && (IsValidation(err) || IsResolution(err)):
			disq = append(disq, Disqualification{
				PermissionID: cand.ExternalID.String(),
				Condition:    bad,
				Reason:       err.Error(),
				Err:          err,
			})
			continue
		case err != nil:
			return denyError("attribute resolution failed", disq), err
		case !ok:
			continue
		}

		detail := "unconditional"
		if n := len(cand.Conditions); n > 0 {
			detail = fmt.Sprintf("%d condition(s) satisfied", n)
		}
		return &CheckResult{
			Allowed:  true,
			Decision: DecisionAllow,
			MatchedBy: []MatchInfo{{
				PermissionID: cand.ExternalID.String(),
				Subject:      cand.Subject,
				Action:       cand.Action,
				Detail:       detail,
			}},
			Disqualified: disq,
		}, nil
	}

	return &CheckResult{
		Decision:     DecisionDenyCondition,
		Reason:       fmt.Sprintf("%d permission(s) matched but no conditions were satisfied", len(candidates)),
		Disqualified: disq,
	}, nil
}

func denyError(reason string, disq []Disqualification) *CheckResult {
	return &CheckResult{Decision: DecisionDenyError, Reason: reason, Disqualified: disq}
}

// evaluateConditions ANDs the conditions of p. Every condition is typed
// before any attribute is resolved, so a malformed permission is rejected
// regardless of resource state. On error it also returns the offending
// condition name.
func evaluateConditions(ctx context.Context, p *permission.Permission, path ParsedPath, resolver AttributeResolver) (bool, string, error) {
	if len(p.Conditions) == 0 {
		return true, "", nil
	}

	type typed struct {
		name   string
		attrib ModelAttrib
		lit    ConditionValue
	}
	conds := make([]typed, 0, len(p.Conditions))
	for _, c := range p.Conditions {
		attrib, lit, err := typeCondition(c.Name, c.Value)
		if err != nil {
			return false, c.Name, err
		}
		conds = append(conds, typed{name: c.Name, attrib: attrib, lit: lit})
	}

	for _, c := range conds {
		res, err := resolver.Resolve(ctx, c.attrib, path.Kind, path.ResourceID)
		if err != nil {
			return false, c.name, err
		}
		if res.Declared != c.attrib.DeclaredType() || !res.Value.SameKind(c.lit) {
			return false, c.name, fmt.Errorf("%w: %s resolved to %s", ErrConditionTypeMismatch, c.attrib, res.Value.Kind)
		}
		if !res.Matches(c.lit) {
			return false, "", nil
		}
	}
	return true, "", nil
}

// typeCondition resolves a stored condition to its attribute and typed
// literal, failing when the literal's kind differs from the declared kind.
func typeCondition(name, value string) (ModelAttrib, ConditionValue, error) {
	attrib, err := ParseModelAttrib(name)
	if err != nil {
		return 0, ConditionValue{}, err
	}
	lit, err := ParseConditionValue(value)
	if err != nil {
		return 0, ConditionValue{}, err
	}
	if lit.Kind != attrib.DeclaredType() {
		return 0, ConditionValue{}, fmt.Errorf("%w: %s expects %s, got %s %q",
			ErrConditionTypeMismatch, attrib, attrib.DeclaredType(), lit.Kind, value)
	}
	return attrib, lit, nil
}

// ValidateCondition checks a condition before it is stored: name must be a
// catalog attribute and value must parse to that attribute's declared kind.
func ValidateCondition(name, value string) error {
	_, _, err := typeCondition(name, value)
	return err
}

// isCancellation reports whether err came from the context.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
