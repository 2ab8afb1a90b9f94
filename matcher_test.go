package gatekeeper

import (
	"net/http"
	"testing"

	"github.com/xraph/gatekeeper/resource"
)

func TestMatchSubject(t *testing.T) {
	editor := &Subject{ID: "7", Roles: []string{"editor"}}

	tests := []struct {
		selector string
		subject  *Subject
		want     bool
	}{
		{"*", nil, true},
		{"*", editor, true},
		{"anonymous", nil, true},
		{"anonymous", editor, false},
		{"authenticated", nil, false},
		{"authenticated", editor, true},
		{"user:7", editor, true},
		{"user:8", editor, false},
		{"user:7", nil, false},
		{"role:editor", editor, true},
		{"role:Editor", editor, false},
		{"role:admin", editor, false},
		{"7", editor, false},
	}

	for _, tt := range tests {
		if got := matchSubject(tt.selector, tt.subject); got != tt.want {
			t.Errorf("matchSubject(%q, %v) = %v, want %v", tt.selector, tt.subject, got, tt.want)
		}
	}
}

func TestMatchAction(t *testing.T) {
	tests := []struct {
		action, method string
		want           bool
	}{
		{"GET", http.MethodGet, true},
		{"get", http.MethodGet, false},
		{"PUT", http.MethodPatch, false},
		{"*", http.MethodDelete, true},
		{"read", http.MethodHead, true},
		{"read", http.MethodPost, false},
		{"write", http.MethodDelete, true},
		{"write", http.MethodOptions, false},
	}

	for _, tt := range tests {
		if got := matchAction(tt.action, tt.method); got != tt.want {
			t.Errorf("matchAction(%q, %q) = %v, want %v", tt.action, tt.method, got, tt.want)
		}
	}
}

func TestMatchObject(t *testing.T) {
	if !matchObject("quran_ayah", resource.KindAyah) {
		t.Error("object should equal the kind string")
	}
	if matchObject("ayah", resource.KindAyah) {
		t.Error("path aliases are not object names")
	}
	if matchObject("*", resource.KindMushaf) {
		t.Error("object has no wildcard")
	}
}

func TestSelectorGrammar(t *testing.T) {
	for _, s := range []string{"*", "anonymous", "authenticated", "user:1", "role:editor"} {
		if !validSubject(s) {
			t.Errorf("%q should be a valid subject", s)
		}
	}
	for _, s := range []string{"", "user:", "role:", "group:x", "1"} {
		if validSubject(s) {
			t.Errorf("%q should be rejected", s)
		}
	}
	for _, a := range []string{"GET", "DELETE", "read", "write", "*"} {
		if !validAction(a) {
			t.Errorf("%q should be a valid action", a)
		}
	}
	for _, a := range []string{"", "get", "CONNECT", "admin"} {
		if validAction(a) {
			t.Errorf("%q should be rejected", a)
		}
	}
}
