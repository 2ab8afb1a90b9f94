package gatekeeper

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/resource"
)

// AttributeResolver fetches the live value of an attribute for one resource.
//
// Resolve fails with ErrResourceNotFound when the resource does not exist
// (or id is uuid.Nil) and with ErrAttributeUnavailable when the attribute
// does not apply to kind. Any other error is a persistence failure.
type AttributeResolver interface {
	Resolve(ctx context.Context, attrib ModelAttrib, kind resource.Kind, resourceID uuid.UUID) (ModelAttribResult, error)
}

// RecordLoader is the read side of resource.Store.
type RecordLoader interface {
	GetResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) (*resource.Record, error)
}

type attribFunc func(rec *resource.Record) (ConditionValue, bool)

// attribFuncs holds one extractor per catalog entry. Adding a ModelAttrib
// without an extractor leaves a nil slot that Resolve reports as unavailable.
var attribFuncs = [attribEnd]attribFunc{
	AttribCreatorID: func(rec *resource.Record) (ConditionValue, bool) {
		return IdentifierValue(rec.CreatorID), true
	},
	AttribOwnerID: func(rec *resource.Record) (ConditionValue, bool) {
		if rec.OwnerID == nil {
			return ConditionValue{}, false
		}
		return IdentifierValue(*rec.OwnerID), true
	},
	AttribTranslatorID: func(rec *resource.Record) (ConditionValue, bool) {
		if rec.TranslatorID == nil {
			return ConditionValue{}, false
		}
		return IdentifierValue(*rec.TranslatorID), true
	},
	AttribVisibility: func(rec *resource.Record) (ConditionValue, bool) {
		if rec.Visible == nil {
			return ConditionValue{}, false
		}
		return BoolValue(*rec.Visible), true
	},
	AttribLanguage: func(rec *resource.Record) (ConditionValue, bool) {
		if rec.Language == nil {
			return ConditionValue{}, false
		}
		return TextValue(*rec.Language), true
	},
	AttribNumber: func(rec *resource.Record) (ConditionValue, bool) {
		if rec.Number == nil {
			return ConditionValue{}, false
		}
		return IntValue(*rec.Number), true
	},
}

// TableResolver resolves attributes from resource records through a fixed
// per-attribute function table.
type TableResolver struct {
	records RecordLoader
}

var _ AttributeResolver = (*TableResolver)(nil)

// NewTableResolver returns a resolver reading records from loader.
func NewTableResolver(loader RecordLoader) *TableResolver {
	return &TableResolver{records: loader}
}

// Resolve implements AttributeResolver.
func (r *TableResolver) Resolve(ctx context.Context, attrib ModelAttrib, kind resource.Kind, resourceID uuid.UUID) (ModelAttribResult, error) {
	if !attrib.Valid() {
		return ModelAttribResult{}, fmt.Errorf("%w: %s", ErrUnknownAttribute, attrib)
	}
	if !attrib.AppliesTo(kind) {
		return ModelAttribResult{}, fmt.Errorf("%w: %s on %s", ErrAttributeUnavailable, attrib, kind)
	}
	if resourceID == uuid.Nil {
		return ModelAttribResult{}, fmt.Errorf("%w: %s has no resource id", ErrResourceNotFound, kind)
	}

	rec, err := r.records.GetResource(ctx, kind, resourceID)
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			return ModelAttribResult{}, fmt.Errorf("%w: %s %s", ErrResourceNotFound, kind, resourceID)
		}
		return ModelAttribResult{}, fmt.Errorf("load %s %s: %w", kind, resourceID, err)
	}

	fn := attribFuncs[attrib]
	if fn == nil {
		return ModelAttribResult{}, fmt.Errorf("%w: %s on %s", ErrAttributeUnavailable, attrib, kind)
	}
	v, ok := fn(rec)
	if !ok {
		return ModelAttribResult{}, fmt.Errorf("%w: %s %s has no %s", ErrAttributeUnavailable, kind, resourceID, attrib)
	}
	return ModelAttribResult{Attrib: attrib, Declared: attrib.DeclaredType(), Value: v}, nil
}

type recordKey struct {
	kind resource.Kind
	id   uuid.UUID
}

type recordEntry struct {
	rec *resource.Record
	err error
}

// memoResolver loads each record at most once. It lives for a single
// decision and is not safe for concurrent use.
type memoResolver struct {
	next RecordLoader
	seen map[recordKey]recordEntry
}

func newMemoResolver(next RecordLoader) *memoResolver {
	return &memoResolver{next: next, seen: make(map[recordKey]recordEntry, 1)}
}

func (m *memoResolver) GetResource(ctx context.Context, kind resource.Kind, resourceID uuid.UUID) (*resource.Record, error) {
	key := recordKey{kind: kind, id: resourceID}
	if e, ok := m.seen[key]; ok {
		return e.rec, e.err
	}
	rec, err := m.next.GetResource(ctx, kind, resourceID)
	// Only definitive answers are kept.
	if err == nil || errors.Is(err, resource.ErrNotFound) {
		m.seen[key] = recordEntry{rec: rec, err: err}
	}
	return rec, err
}
