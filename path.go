package gatekeeper

import (
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/resource"
)

// ParsedPath is the object/action key of one request.
type ParsedPath struct {
	Raw        string        `json:"raw"`
	Kind       resource.Kind `json:"kind"`
	ResourceID uuid.UUID     `json:"resource_id"`
	Method     string        `json:"method"`
}

// HasResource reports whether the path addressed a single resource.
func (p ParsedPath) HasResource() bool { return p.ResourceID != uuid.Nil }

// segmentKinds maps the first path segment to a resource kind.
var segmentKinds = map[string]resource.Kind{
	"account":      resource.KindAccount,
	"user":         resource.KindUser,
	"email":        resource.KindEmail,
	"organization": resource.KindOrganization,
	"mushaf":       resource.KindMushaf,
	"surah":        resource.KindSurah,
	"ayah":         resource.KindAyah,
	"word":         resource.KindWord,
	"translation":  resource.KindTranslation,
	"permission":   resource.KindPermission,
}

// ParsePath splits a request path into resource kind and resource id. It
// never fails: an unmapped first segment yields resource.KindUnknown, and a
// second segment that is not a UUID leaves ResourceID as uuid.Nil.
func ParsePath(method, rawPath string) ParsedPath {
	p := ParsedPath{
		Raw:    rawPath,
		Kind:   resource.KindUnknown,
		Method: strings.ToUpper(strings.TrimSpace(method)),
	}

	if i := strings.IndexAny(rawPath, "?#"); i >= 0 {
		rawPath = rawPath[:i]
	}

	segments := make([]string, 0, 2)
	for _, seg := range strings.Split(rawPath, "/") {
		if seg == "" {
			continue
		}
		segments = append(segments, seg)
		if len(segments) == 2 {
			break
		}
	}
	if len(segments) == 0 {
		return p
	}

	kind, ok := segmentKinds[segments[0]]
	if !ok {
		return p
	}
	p.Kind = kind

	if len(segments) > 1 {
		if rid, err := uuid.Parse(segments[1]); err == nil {
			p.ResourceID = rid
		}
	}
	return p
}
