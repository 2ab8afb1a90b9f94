package api

// ──────────────────────────────────────────────────
// Check requests
// ──────────────────────────────────────────────────

// CheckRequest describes one request the gate would see.
type CheckRequest struct {
	SubjectID string   `json:"subject_id,omitempty" description:"Authenticated subject; empty means anonymous"`
	Roles     []string `json:"roles,omitempty" description:"Roles held by the subject"`
	Method    string   `json:"method" description:"HTTP method"`
	Path      string   `json:"path" description:"Request path, e.g. /translation/{id}"`
}

// BatchCheckRequest contains multiple checks.
type BatchCheckRequest struct {
	Checks []CheckRequest `json:"checks" description:"List of checks"`
}

// ──────────────────────────────────────────────────
// Permission requests
// ──────────────────────────────────────────────────

// GetPermissionRequest is the path parameter for getting a permission.
type GetPermissionRequest struct {
	PermissionID string `path:"permissionId" description:"Permission ID"`
}

// ListPermissionsRequest holds query parameters.
type ListPermissionsRequest struct {
	Subject string `query:"subject" description:"Filter by subject selector"`
	Object  string `query:"object" description:"Filter by resource kind"`
	Action  string `query:"action" description:"Filter by action"`
	Limit   int    `query:"limit" description:"Maximum results"`
	Offset  int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Check log requests
// ──────────────────────────────────────────────────

// GetCheckLogRequest is the path parameter for getting a check log entry.
type GetCheckLogRequest struct {
	LogID string `path:"logId" description:"Check log ID"`
}

// ListCheckLogsRequest holds query parameters for querying check logs.
type ListCheckLogsRequest struct {
	SubjectID    string `query:"subject_id" description:"Filter by subject ID"`
	ResourceKind string `query:"resource_kind" description:"Filter by resource kind"`
	ResourceID   string `query:"resource_id" description:"Filter by resource ID"`
	Decision     string `query:"decision" description:"Filter by decision"`
	After        string `query:"after" description:"Entries at or after (RFC3339)"`
	Before       string `query:"before" description:"Entries at or before (RFC3339)"`
	Limit        int    `query:"limit" description:"Maximum results"`
	Offset       int    `query:"offset" description:"Results to skip"`
}
