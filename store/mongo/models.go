package mongo

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
// Permission model
// ──────────────────────────────────────────────────

// permissionModel embeds its conditions. A condition's row number is its
// position within the permission.
type permissionModel struct {
	grove.BaseModel `grove:"table:gatekeeper_permissions"`
	ExternalID      string           `grove:"id,pk"       bson:"_id"`
	Seq             int64            `grove:"seq"         bson:"seq"`
	CreatorID       string           `grove:"creator_id"  bson:"creator_id"`
	Subject         string           `grove:"subject"     bson:"subject"`
	Object          string           `grove:"object"      bson:"object"`
	Action          string           `grove:"action"      bson:"action"`
	Conditions      []conditionModel `grove:"conditions"  bson:"conditions"`
	CreatedAt       time.Time        `grove:"created_at"  bson:"created_at"`
	UpdatedAt       time.Time        `grove:"updated_at"  bson:"updated_at"`
}

type conditionModel struct {
	ExternalID string    `bson:"id"`
	CreatorID  string    `bson:"creator_id"`
	Name       string    `bson:"name"`
	Value      string    `bson:"value"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func permissionToModel(p *permission.Permission) *permissionModel {
	m := &permissionModel{
		ExternalID: p.ExternalID.String(),
		Seq:        p.ID,
		CreatorID:  p.CreatorID.String(),
		Subject:    p.Subject,
		Object:     p.Object,
		Action:     p.Action,
		Conditions: make([]conditionModel, len(p.Conditions)),
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	}
	for i, c := range p.Conditions {
		m.Conditions[i] = conditionModel{
			ExternalID: c.ExternalID.String(),
			CreatorID:  c.CreatorID.String(),
			Name:       c.Name,
			Value:      c.Value,
			CreatedAt:  c.CreatedAt,
			UpdatedAt:  c.UpdatedAt,
		}
	}
	return m
}

func permissionFromModel(m *permissionModel) *permission.Permission {
	pid, _ := id.ParsePermissionID(m.ExternalID) //nolint:errcheck // stored IDs are always valid
	creator, _ := uuid.Parse(m.CreatorID)        //nolint:errcheck // stored IDs are always valid
	p := &permission.Permission{
		ID:         m.Seq,
		ExternalID: pid,
		CreatorID:  creator,
		Subject:    m.Subject,
		Object:     m.Object,
		Action:     m.Action,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	for i, c := range m.Conditions {
		cid, _ := id.ParseConditionID(c.ExternalID) //nolint:errcheck // stored IDs are always valid
		ccreator, _ := uuid.Parse(c.CreatorID)      //nolint:errcheck // stored IDs are always valid
		p.Conditions = append(p.Conditions, permission.Condition{
			ID:           int64(i + 1),
			ExternalID:   cid,
			PermissionID: m.Seq,
			CreatorID:    ccreator,
			Name:         c.Name,
			Value:        c.Value,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return p
}

// ──────────────────────────────────────────────────
// Resource model
// ──────────────────────────────────────────────────

type resourceModel struct {
	grove.BaseModel `grove:"table:gatekeeper_resources"`
	Key             string    `grove:"id,pk"          bson:"_id"`
	Kind            string    `grove:"kind"           bson:"kind"`
	ResourceID      string    `grove:"resource_id"    bson:"resource_id"`
	CreatorID       string    `grove:"creator_id"     bson:"creator_id"`
	OwnerID         *string   `grove:"owner_id"       bson:"owner_id,omitempty"`
	TranslatorID    *string   `grove:"translator_id"  bson:"translator_id,omitempty"`
	Visible         *bool     `grove:"visible"        bson:"visible,omitempty"`
	Language        *string   `grove:"language"       bson:"language,omitempty"`
	Number          *int64    `grove:"number"         bson:"number,omitempty"`
	UpdatedAt       time.Time `grove:"updated_at"     bson:"updated_at"`
}

// resourceKey is the document key of a kind/id pair.
func resourceKey(kind resource.Kind, resourceID uuid.UUID) string {
	return string(kind) + "/" + resourceID.String()
}

func resourceToModel(r *resource.Record) *resourceModel {
	m := &resourceModel{
		Key:        resourceKey(r.Kind, r.ID),
		Kind:       string(r.Kind),
		ResourceID: r.ID.String(),
		CreatorID:  r.CreatorID.String(),
		Visible:    r.Visible,
		Language:   r.Language,
		Number:     r.Number,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.OwnerID != nil {
		s := r.OwnerID.String()
		m.OwnerID = &s
	}
	if r.TranslatorID != nil {
		s := r.TranslatorID.String()
		m.TranslatorID = &s
	}
	return m
}

func resourceFromModel(m *resourceModel) *resource.Record {
	rid, _ := uuid.Parse(m.ResourceID)   //nolint:errcheck // stored IDs are always valid
	creator, _ := uuid.Parse(m.CreatorID) //nolint:errcheck // stored IDs are always valid
	r := &resource.Record{
		Kind:      resource.Kind(m.Kind),
		ID:        rid,
		CreatorID: creator,
		Visible:   m.Visible,
		Language:  m.Language,
		Number:    m.Number,
		UpdatedAt: m.UpdatedAt,
	}
	if m.OwnerID != nil {
		if u, err := uuid.Parse(*m.OwnerID); err == nil {
			r.OwnerID = &u
		}
	}
	if m.TranslatorID != nil {
		if u, err := uuid.Parse(*m.TranslatorID); err == nil {
			r.TranslatorID = &u
		}
	}
	return r
}

// ──────────────────────────────────────────────────
// Check log model
// ──────────────────────────────────────────────────

type checkLogModel struct {
	grove.BaseModel `grove:"table:gatekeeper_check_logs"`
	ID              string    `grove:"id,pk"          bson:"_id"`
	SubjectID       string    `grove:"subject_id"     bson:"subject_id"`
	Method          string    `grove:"method"         bson:"method"`
	Path            string    `grove:"path"           bson:"path"`
	ResourceKind    string    `grove:"resource_kind"  bson:"resource_kind"`
	ResourceID      string    `grove:"resource_id"    bson:"resource_id"`
	Decision        string    `grove:"decision"       bson:"decision"`
	Reason          string    `grove:"reason"         bson:"reason"`
	PermissionID    string    `grove:"permission_id"  bson:"permission_id"`
	EvalTimeNs      int64     `grove:"eval_time_ns"   bson:"eval_time_ns"`
	CreatedAt       time.Time `grove:"created_at"     bson:"created_at"`
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
		CreatedAt:    e.CreatedAt,
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
		CreatedAt:    m.CreatedAt,
	}
}
