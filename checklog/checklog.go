// Package checklog defines the decision audit record written after every
// authorization check.
package checklog

import (
	"errors"
	"time"

	"github.com/xraph/gatekeeper/id"
)

// ErrNotFound is returned when a check log entry cannot be found.
var ErrNotFound = errors.New("check log not found")

// Entry is a single authorization decision.
type Entry struct {
	ID           id.CheckLogID `json:"id" db:"id"`
	SubjectID    string        `json:"subject_id,omitempty" db:"subject_id"`
	Method       string        `json:"method" db:"method"`
	Path         string        `json:"path" db:"path"`
	ResourceKind string        `json:"resource_kind" db:"resource_kind"`
	ResourceID   string        `json:"resource_id,omitempty" db:"resource_id"`
	Decision     string        `json:"decision" db:"decision"`
	Reason       string        `json:"reason,omitempty" db:"reason"`
	PermissionID string        `json:"permission_id,omitempty" db:"permission_id"`
	EvalTimeNs   int64         `json:"eval_time_ns" db:"eval_time_ns"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying check logs.
type QueryFilter struct {
	SubjectID    string     `json:"subject_id,omitempty"`
	ResourceKind string     `json:"resource_kind,omitempty"`
	ResourceID   string     `json:"resource_id,omitempty"`
	Decision     string     `json:"decision,omitempty"`
	After        *time.Time `json:"after,omitempty"`
	Before       *time.Time `json:"before,omitempty"`
	Limit        int        `json:"limit,omitempty"`
	Offset       int        `json:"offset,omitempty"`
}
