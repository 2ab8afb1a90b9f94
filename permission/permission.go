// Package permission defines the Permission and Condition records and the
// store contract the decision engine reads candidates through.
package permission

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/id"
)

// ErrNotFound is returned when a permission cannot be found.
var ErrNotFound = errors.New("permission not found")

// Permission grants Subject the Action on resources of kind Object, subject
// to every one of its Conditions holding.
type Permission struct {
	ID         int64           `json:"-" db:"id"`
	ExternalID id.PermissionID `json:"id" db:"external_id"`
	CreatorID  uuid.UUID       `json:"creator_id" db:"creator_id"`
	Subject    string          `json:"subject" db:"subject"`
	Object     string          `json:"object" db:"object"`
	Action     string          `json:"action" db:"action"`
	Conditions []Condition     `json:"conditions" db:"-"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// Unconditional reports whether p grants on subject/object/action alone.
func (p *Permission) Unconditional() bool { return len(p.Conditions) == 0 }

// Condition is a named resource attribute compared against a literal.
type Condition struct {
	ID           int64          `json:"-" db:"id"`
	ExternalID   id.ConditionID `json:"id" db:"external_id"`
	PermissionID int64          `json:"-" db:"permission_id"`
	CreatorID    uuid.UUID      `json:"creator_id" db:"creator_id"`
	Name         string         `json:"name" db:"name"`
	Value        string         `json:"value" db:"value"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// CandidateQuery narrows the permissions that could apply to one request.
// A permission is returned when its object equals Object, its action is in
// Actions and its subject is in Subjects.
type CandidateQuery struct {
	Object   string   `json:"object"`
	Actions  []string `json:"actions"`
	Subjects []string `json:"subjects"`
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	Subject string `json:"subject,omitempty"`
	Object  string `json:"object,omitempty"`
	Action  string `json:"action,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}
