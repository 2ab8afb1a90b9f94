package postgres

import (
	"time"

	"github.com/google/uuid"
	"github.com/xraph/grove"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/resource"
)

// ──────────────────────────────────────────────────
// Permission models
// ──────────────────────────────────────────────────

type permissionModel struct {
	grove.BaseModel `grove:"table:gatekeeper_permissions"`
	ID              int64     `grove:"id,pk"`
	ExternalID      string    `grove:"external_id,notnull"`
	CreatorID       string    `grove:"creator_id,notnull"`
	Subject         string    `grove:"subject,notnull"`
	Object          string    `grove:"object,notnull"`
	Action          string    `grove:"action,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	return &permissionModel{
		ID:         p.ID,
		ExternalID: p.ExternalID.String(),
		CreatorID:  p.CreatorID.String(),
		Subject:    p.Subject,
		Object:     p.Object,
		Action:     p.Action,
		CreatedAt:  p.CreatedAt.UTC(),
		UpdatedAt:  p.UpdatedAt.UTC(),
	}
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ExternalID) //nolint:errcheck // stored IDs are always valid
	creator, _ := uuid.Parse(m.CreatorID)        //nolint:errcheck // stored IDs are always valid
	return &permission.Permission{
		ID:         m.ID,
		ExternalID: pid,
		CreatorID:  creator,
		Subject:    m.Subject,
		Object:     m.Object,
		Action:     m.Action,
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

type conditionModel struct {
	grove.BaseModel `grove:"table:gatekeeper_permission_conditions"`
	ID              int64     `grove:"id,pk"`
	ExternalID      string    `grove:"external_id,notnull"`
	PermissionID    int64     `grove:"permission_id,notnull"`
	CreatorID       string    `grove:"creator_id,notnull"`
	Name            string    `grove:"name,notnull"`
	Value           string    `grove:"value,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func conditionToModel(c *permission.Condition) conditionModel {
	return conditionModel{
		ID:           c.ID,
		ExternalID:   c.ExternalID.String(),
		PermissionID: c.PermissionID,
		CreatorID:    c.CreatorID.String(),
		Name:         c.Name,
		Value:        c.Value,
		CreatedAt:    c.CreatedAt.UTC(),
		UpdatedAt:    c.UpdatedAt.UTC(),
	}
}

func conditionFromModel(m *conditionModel) permission.Condition {
	cid, _ := id.ParseConditionID(m.ExternalID) //nolint:errcheck // stored IDs are always valid
	creator, _ := uuid.Parse(m.CreatorID)       //nolint:errcheck // stored IDs are always valid
	return permission.Condition{
		ID:           m.ID,
		ExternalID:   cid,
		PermissionID: m.PermissionID,
		CreatorID:    creator,
		Name:         m.Name,
		Value:        m.Value,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

// ──────────────────────────────────────────────────
// Resource model
// ──────────────────────────────────────────────────

type resourceModel struct {
	grove.BaseModel `grove:"table:gatekeeper_resources"`
	Kind            string    `grove:"kind,pk"`
	ID              string    `grove:"id,pk"`
	CreatorID       string    `grove:"creator_id,notnull"`
	OwnerID         *string   `grove:"owner_id"`
	TranslatorID    *string   `grove:"translator_id"`
	Visible         *bool     `grove:"visible"`
	Language        *string   `grove:"language"`
	Number          *int64    `grove:"number"`
	UpdatedAt       time.Time `grove:"updated_at,notnull"`
}

func resourceToModel(r *resource.Record) *resourceModel {
	return &resourceModel{
		Kind:         string(r.Kind),
		ID:           r.ID.String(),
		CreatorID:    r.CreatorID.String(),
		OwnerID:      uuidPtrString(r.OwnerID),
		TranslatorID: uuidPtrString(r.TranslatorID),
		Visible:      r.Visible,
		Language:     r.Language,
		Number:       r.Number,
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func resourceFromModel(m *resourceModel) (*resource.Record, error) {
	rid, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, err
	}
	creator, err := uuid.Parse(m.CreatorID)
	if err != nil {
		return nil, err
	}
	r := &resource.Record{
		Kind:      resource.Kind(m.Kind),
		ID:        rid,
		CreatorID: creator,
		Visible:   m.Visible,
		Language:  m.Language,
		Number:    m.Number,
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if r.OwnerID, err = parseUUIDPtr(m.OwnerID); err != nil {
		return nil, err
	}
	if r.TranslatorID, err = parseUUIDPtr(m.TranslatorID); err != nil {
		return nil, err
	}
	return r, nil
}

func uuidPtrString(u *uuid.UUID) *string {
	if u == nil {
		return nil
	}
	s := u.String()
	return &s
}

func parseUUIDPtr(s *string) (*uuid.UUID, error) {
	if s == nil {
		return nil, nil
	}
	u, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ──────────────────────────────────────────────────
// Check log model
// ──────────────────────────────────────────────────

type checkLogModel struct {
	grove.BaseModel `grove:"table:gatekeeper_check_logs"`
	ID              string    `grove:"id,pk"`
	SubjectID       string    `grove:"subject_id,notnull"`
	Method          string    `grove:"method,notnull"`
	Path            string    `grove:"path,notnull"`
	ResourceKind    string    `grove:"resource_kind,notnull"`
	ResourceID      string    `grove:"resource_id,notnull"`
	Decision        string    `grove:"decision,notnull"`
	Reason          string    `grove:"reason"`
	PermissionID    string    `grove:"permission_id"`
	EvalTimeNs      int64     `grove:"eval_time_ns,notnull"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func checkLogToModel(e *checklog.Entry) *checkLogModel {
	return &checkLogModel{
		ID:           e.ID.String(),
		SubjectID:    e.SubjectID,
		Method:       e.Method,
		Path:         e.Path,
		ResourceKind: e.ResourceKind,
		ResourceID:   e.ResourceID,
		Decision:     e.Decision,
		Reason:       e.Reason,
		PermissionID: e.PermissionID,
		EvalTimeNs:   e.EvalTimeNs,
		CreatedAt:    e.CreatedAt.UTC(),
	}
}

func checkLogFromModel(m *checkLogModel) *checklog.Entry {
	clid, _ := id.ParseCheckLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &checklog.Entry{
		ID:           clid,
		SubjectID:    m.SubjectID,
		Method:       m.Method,
		Path:         m.Path,
		ResourceKind: m.ResourceKind,
		ResourceID:   m.ResourceID,
		Decision:     m.Decision,
		Reason:       m.Reason,
		PermissionID: m.PermissionID,
		EvalTimeNs:   m.EvalTimeNs,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}
