package gatekeeper

import (
	"net/http"
	"strings"

	"github.com/xraph/gatekeeper/resource"
)

// Subject selectors a permission may name.
const (
	SelectorEveryone      = "*"
	SelectorAnonymous     = "anonymous"
	SelectorAuthenticated = "authenticated"
	SelectorUserPrefix    = "user:"
	SelectorRolePrefix    = "role:"
)

// Action classes a permission may name in place of a single verb.
const (
	ActionAny   = "*"
	ActionRead  = "read"
	ActionWrite = "write"
)

var actionClasses = map[string][]string{
	ActionRead:  {http.MethodGet, http.MethodHead, http.MethodOptions},
	ActionWrite: {http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
}

// subjectSelectors lists every selector that designates s.
func subjectSelectors(s *Subject) []string {
	if s == nil {
		return []string{SelectorEveryone, SelectorAnonymous}
	}
	out := make([]string, 0, 3+len(s.Roles))
	out = append(out, SelectorEveryone, SelectorAuthenticated, SelectorUserPrefix+s.ID)
	for _, role := range s.Roles {
		out = append(out, SelectorRolePrefix+role)
	}
	return out
}

// actionSelectors lists every action value that covers method.
func actionSelectors(method string) []string {
	out := []string{method, ActionAny}
	for _, class := range []string{ActionRead, ActionWrite} {
		for _, v := range actionClasses[class] {
			if v == method {
				out = append(out, class)
				break
			}
		}
	}
	return out
}

func matchSubject(selector string, s *Subject) bool {
	for _, sel := range subjectSelectors(s) {
		if sel == selector {
			return true
		}
	}
	return false
}

func matchObject(object string, kind resource.Kind) bool {
	return object == string(kind)
}

func matchAction(action, method string) bool {
	for _, a := range actionSelectors(method) {
		if a == action {
			return true
		}
	}
	return false
}

// validSubject reports whether selector has a form subjectSelectors can produce.
func validSubject(selector string) bool {
	switch selector {
	case SelectorEveryone, SelectorAnonymous, SelectorAuthenticated:
		return true
	}
	if rest, ok := strings.CutPrefix(selector, SelectorUserPrefix); ok {
		return rest != ""
	}
	if rest, ok := strings.CutPrefix(selector, SelectorRolePrefix); ok {
		return rest != ""
	}
	return false
}

// validAction reports whether action is a verb, a verb class or "*".
func validAction(action string) bool {
	if action == ActionAny {
		return true
	}
	if _, ok := actionClasses[action]; ok {
		return true
	}
	for _, verbs := range actionClasses {
		for _, v := range verbs {
			if v == action {
				return true
			}
		}
	}
	return false
}
