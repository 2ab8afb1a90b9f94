package api

// CheckResponse is the response for an authorization check.
type CheckResponse struct {
	Allowed      bool               `json:"allowed" description:"Whether the request is allowed"`
	Decision     string             `json:"decision" description:"Decision code"`
	Reason       string             `json:"reason,omitempty" description:"Why the decision was made"`
	Kind         string             `json:"kind" description:"Resource kind parsed from the path"`
	ResourceID   string             `json:"resource_id,omitempty" description:"Resource ID parsed from the path"`
	MatchedBy    []MatchInfo        `json:"matched_by,omitempty" description:"Granting permission"`
	Disqualified []Disqualification `json:"disqualified,omitempty" description:"Permissions skipped because a condition could not be evaluated"`
	EvalTimeNs   int64              `json:"eval_time_ns" description:"Evaluation time in nanoseconds"`
}

// MatchInfo identifies the granting permission.
type MatchInfo struct {
	PermissionID string `json:"permission_id" description:"Permission ID"`
	Subject      string `json:"subject" description:"Subject selector"`
	Action       string `json:"action" description:"Action selector"`
	Detail       string `json:"detail,omitempty" description:"Match detail"`
}

// Disqualification is a permission skipped during evaluation.
type Disqualification struct {
	PermissionID string `json:"permission_id" description:"Permission ID"`
	Condition    string `json:"condition,omitempty" description:"Offending condition"`
	Reason       string `json:"reason" description:"Why it was skipped"`
}

// BatchCheckResponse contains results for multiple checks.
type BatchCheckResponse struct {
	Results []CheckResponse `json:"results" description:"Check results in order"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}
