// Package resource defines the attribute projection of a concrete resource
// and the read-only store the attribute resolver consumes.
//
// Records are maintained by the services that own the underlying entities
// (organizations, mushafs, translations, ...). The authorization engine only
// reads them.
package resource

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record exists for a kind/id pair.
var ErrNotFound = errors.New("resource not found")

// Kind names a resource kind. It is also the value a permission's object
// must equal to target that kind.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindAccount      Kind = "account"
	KindUser         Kind = "user"
	KindEmail        Kind = "email"
	KindOrganization Kind = "organization"
	KindMushaf       Kind = "mushaf"
	KindSurah        Kind = "surah"
	KindAyah         Kind = "quran_ayah"
	KindWord         Kind = "quran_word"
	KindTranslation  Kind = "translation"
	KindPermission   Kind = "permission"
)

// Kinds lists every known kind except KindUnknown.
func Kinds() []Kind {
	return []Kind{
		KindAccount, KindUser, KindEmail, KindOrganization, KindMushaf,
		KindSurah, KindAyah, KindWord, KindTranslation, KindPermission,
	}
}

// Known reports whether k is one of Kinds.
func (k Kind) Known() bool {
	for _, known := range Kinds() {
		if k == known {
			return true
		}
	}
	return false
}

// Record carries the resolvable attributes of one resource. Optional
// attributes are nil when the owning entity has no such column.
type Record struct {
	Kind         Kind       `json:"kind" yaml:"kind"`
	ID           uuid.UUID  `json:"id" yaml:"id"`
	CreatorID    uuid.UUID  `json:"creator_id" yaml:"creator_id"`
	OwnerID      *uuid.UUID `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	TranslatorID *uuid.UUID `json:"translator_id,omitempty" yaml:"translator_id,omitempty"`
	Visible      *bool      `json:"visible,omitempty" yaml:"visible,omitempty"`
	Language     *string    `json:"language,omitempty" yaml:"language,omitempty"`
	Number       *int64     `json:"number,omitempty" yaml:"number,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"-"`
}
