package gatekeeper

import "errors"

var (
	// ErrAccessDenied is returned by Enforce when no permission grants the request.
	ErrAccessDenied = errors.New("gatekeeper: access denied")

	// ErrPermissionNotFound is returned when a permission cannot be found.
	ErrPermissionNotFound = errors.New("gatekeeper: permission not found")

	// ErrPersistence is returned when the candidate set cannot be loaded.
	// The accompanying decision is always a deny.
	ErrPersistence = errors.New("gatekeeper: permission store failure")

	// ErrUnknownAttribute is returned for a condition name outside the
	// attribute catalog.
	ErrUnknownAttribute = errors.New("gatekeeper: unknown attribute")

	// ErrMalformedValue is returned for a literal that looks like a boolean,
	// integer or identifier but is not a valid one.
	ErrMalformedValue = errors.New("gatekeeper: malformed condition value")

	// ErrConditionTypeMismatch is returned when a condition literal does not
	// parse to its attribute's declared type.
	ErrConditionTypeMismatch = errors.New("gatekeeper: condition value type is not correct")

	// ErrTooManyConditions is returned when a permission exceeds Config.MaxConditions.
	ErrTooManyConditions = errors.New("gatekeeper: too many conditions")

	// ErrInvalidPermission is returned when subject, object or action is empty
	// or names something the engine cannot match.
	ErrInvalidPermission = errors.New("gatekeeper: invalid permission")

	// ErrResourceNotFound is returned when the targeted resource does not exist
	// or the request path carries no resource id.
	ErrResourceNotFound = errors.New("gatekeeper: resource not found")

	// ErrAttributeUnavailable is returned when an attribute does not apply to
	// the resource kind, or the resource has no value for it.
	ErrAttributeUnavailable = errors.New("gatekeeper: attribute unavailable for resource kind")
)

// IsValidation reports whether err is an authoring-time validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrUnknownAttribute) ||
		errors.Is(err, ErrMalformedValue) ||
		errors.Is(err, ErrConditionTypeMismatch) ||
		errors.Is(err, ErrTooManyConditions) ||
		errors.Is(err, ErrInvalidPermission)
}

// IsResolution reports whether err is a decision-time resolution failure.
// Resolution failures disqualify a single candidate and never abort a check.
func IsResolution(err error) bool {
	return errors.Is(err, ErrResourceNotFound) || errors.Is(err, ErrAttributeUnavailable)
}
