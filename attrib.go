package gatekeeper

import (
	"fmt"

	"github.com/xraph/gatekeeper/resource"
)

// ModelAttrib is a resource attribute the engine knows how to resolve. The
// set is closed: conditions may only name attributes listed here.
type ModelAttrib uint8

const (
	AttribCreatorID ModelAttrib = iota + 1
	AttribOwnerID
	AttribTranslatorID
	AttribVisibility
	AttribLanguage
	AttribNumber

	attribEnd
)

type attribSpec struct {
	name     string
	declared ValueKind
	kinds    []resource.Kind
}

// attribSpecs is indexed by ModelAttrib; index 0 is unused.
var attribSpecs = [attribEnd]attribSpec{
	AttribCreatorID: {
		name:     "resource-creator-id",
		declared: KindIdentifier,
		kinds:    resource.Kinds(),
	},
	AttribOwnerID: {
		name:     "resource-owner-id",
		declared: KindIdentifier,
		kinds:    []resource.Kind{resource.KindOrganization, resource.KindAccount, resource.KindEmail, resource.KindUser},
	},
	AttribTranslatorID: {
		name:     "resource-translator-id",
		declared: KindIdentifier,
		kinds:    []resource.Kind{resource.KindTranslation},
	},
	AttribVisibility: {
		name:     "resource-visibility-flag",
		declared: KindBoolean,
		kinds:    []resource.Kind{resource.KindMushaf, resource.KindTranslation, resource.KindOrganization},
	},
	AttribLanguage: {
		name:     "resource-language",
		declared: KindText,
		kinds:    []resource.Kind{resource.KindTranslation, resource.KindUser},
	},
	AttribNumber: {
		name:     "resource-number",
		declared: KindInteger,
		kinds:    []resource.Kind{resource.KindSurah, resource.KindAyah},
	},
}

// AllAttribs returns the catalog in declaration order.
func AllAttribs() []ModelAttrib {
	out := make([]ModelAttrib, 0, int(attribEnd)-1)
	for a := AttribCreatorID; a < attribEnd; a++ {
		out = append(out, a)
	}
	return out
}

// ParseModelAttrib looks up an attribute by its condition name.
func ParseModelAttrib(name string) (ModelAttrib, error) {
	for a := AttribCreatorID; a < attribEnd; a++ {
		if attribSpecs[a].name == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
}

// Valid reports whether a is a member of the catalog.
func (a ModelAttrib) Valid() bool { return a >= AttribCreatorID && a < attribEnd }

// String returns the condition name of a.
func (a ModelAttrib) String() string {
	if !a.Valid() {
		return fmt.Sprintf("ModelAttrib(%d)", uint8(a))
	}
	return attribSpecs[a].name
}

// DeclaredType returns the value kind every literal for a must parse to.
func (a ModelAttrib) DeclaredType() ValueKind {
	if !a.Valid() {
		return 0
	}
	return attribSpecs[a].declared
}

// AppliesTo reports whether a can be resolved for resources of kind k.
func (a ModelAttrib) AppliesTo(k resource.Kind) bool {
	if !a.Valid() {
		return false
	}
	for _, kind := range attribSpecs[a].kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// ModelAttribResult is an attribute resolved against one concrete resource.
type ModelAttribResult struct {
	Attrib   ModelAttrib
	Declared ValueKind
	Value    ConditionValue
}

// Matches reports whether the resolved value equals lit. A literal of the
// wrong kind never matches.
func (r ModelAttribResult) Matches(lit ConditionValue) bool {
	return r.Value.Equal(lit)
}
