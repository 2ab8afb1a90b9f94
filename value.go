package gatekeeper

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/google/uuid"
)

// ValueKind is the type tag of a ConditionValue.
type ValueKind uint8

const (
	KindBoolean ValueKind = iota + 1
	KindInteger
	KindIdentifier
	KindText
)

func (k ValueKind) String() string {
	switch k {
	case KindBoolean:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindIdentifier:
		return "identifier"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(k))
	}
}

// ConditionValue is a tagged union of the literal kinds a condition can
// compare against. Only the field selected by Kind is meaningful.
type ConditionValue struct {
	Kind ValueKind
	b    bool
	i    int64
	u    uuid.UUID
	s    string
}

func BoolValue(b bool) ConditionValue            { return ConditionValue{Kind: KindBoolean, b: b} }
func IntValue(i int64) ConditionValue            { return ConditionValue{Kind: KindInteger, i: i} }
func IdentifierValue(u uuid.UUID) ConditionValue { return ConditionValue{Kind: KindIdentifier, u: u} }
func TextValue(s string) ConditionValue          { return ConditionValue{Kind: KindText, s: s} }

var (
	integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
	uuidShape      = regexp.MustCompile(`^[^-]{8}-[^-]{4}-[^-]{4}-[^-]{4}-[^-]{12}$`)
	boolLike       = regexp.MustCompile(`(?i)^(true|false)$`)
)

// ParseConditionValue types a stored literal.
//
// "true" and "false" are booleans, an optional sign followed by digits is an
// integer, the 8-4-4-4-12 UUID layout is an identifier and anything else is
// text. A literal that has the shape of a non-text kind but is not a valid
// value of it (other capitalisations of true/false, integers overflowing
// int64, UUID layouts with non-hex characters) fails with ErrMalformedValue
// rather than falling back to text.
func ParseConditionValue(literal string) (ConditionValue, error) {
	switch {
	case literal == "true":
		return BoolValue(true), nil
	case literal == "false":
		return BoolValue(false), nil
	case boolLike.MatchString(literal):
		return ConditionValue{}, fmt.Errorf("%w: boolean %q must be lower case", ErrMalformedValue, literal)
	case integerPattern.MatchString(literal):
		n, err := strconv.ParseInt(literal, 10, 64)
		if err != nil {
			return ConditionValue{}, fmt.Errorf("%w: integer %q: %w", ErrMalformedValue, literal, err)
		}
		return IntValue(n), nil
	case uuidShape.MatchString(literal):
		u, err := uuid.Parse(literal)
		if err != nil {
			return ConditionValue{}, fmt.Errorf("%w: identifier %q: %w", ErrMalformedValue, literal, err)
		}
		return IdentifierValue(u), nil
	default:
		return TextValue(literal), nil
	}
}

// SameKind reports whether v and o carry the same type tag. Values are not
// compared.
func (v ConditionValue) SameKind(o ConditionValue) bool { return v.Kind == o.Kind }

// Equal reports whether v and o have the same kind and the same value.
func (v ConditionValue) Equal(o ConditionValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBoolean:
		return v.b == o.b
	case KindInteger:
		return v.i == o.i
	case KindIdentifier:
		return v.u == o.u
	case KindText:
		return v.s == o.s
	default:
		return false
	}
}

// String renders the value in its literal form.
func (v ConditionValue) String() string {
	switch v.Kind {
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindIdentifier:
		return v.u.String()
	case KindText:
		return v.s
	default:
		return ""
	}
}
