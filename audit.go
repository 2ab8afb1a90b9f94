package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/plugin"
)

// AuditPlugin writes a checklog.Entry for every decision the engine makes.
// It is how deny reasons are observed: the gate itself only ever answers
// with a fixed body.
type AuditPlugin struct {
	store    checklog.Store
	onlyDeny bool
}

var (
	_ plugin.Plugin     = (*AuditPlugin)(nil)
	_ plugin.AfterCheck = (*AuditPlugin)(nil)
)

// AuditOption configures an AuditPlugin.
type AuditOption func(*AuditPlugin)

// AuditDeniesOnly skips allow decisions.
func AuditDeniesOnly() AuditOption { return func(a *AuditPlugin) { a.onlyDeny = true } }

// NewAuditPlugin returns a plugin recording decisions into s.
func NewAuditPlugin(s checklog.Store, opts ...AuditOption) *AuditPlugin {
	a := &AuditPlugin{store: s}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements plugin.Plugin.
func (a *AuditPlugin) Name() string { return "checklog" }

// OnAfterCheck implements plugin.AfterCheck.
func (a *AuditPlugin) OnAfterCheck(ctx context.Context, req, result any) error {
	r, ok := req.(*CheckRequest)
	if !ok {
		return errors.New("checklog: unexpected request type")
	}
	res, ok := result.(*CheckResult)
	if !ok {
		return errors.New("checklog: unexpected result type")
	}
	if a.onlyDeny && res.Allowed {
		return nil
	}

	entry := &checklog.Entry{
		ID:           id.NewCheckLogID(),
		Method:       r.Path.Method,
		Path:         r.Path.Raw,
		ResourceKind: string(r.Path.Kind),
		Decision:     string(res.Decision),
		Reason:       res.Reason,
		EvalTimeNs:   res.EvalTimeNs,
		CreatedAt:    time.Now().UTC(),
	}
	if r.Subject != nil {
		entry.SubjectID = r.Subject.ID
	}
	if r.Path.ResourceID != uuid.Nil {
		entry.ResourceID = r.Path.ResourceID.String()
	}
	if len(res.MatchedBy) > 0 {
		entry.PermissionID = res.MatchedBy[0].PermissionID
	}

	// A cancelled request still gets its decision recorded.
	if err := a.store.CreateCheckLog(context.WithoutCancel(ctx), entry); err != nil {
		return fmt.Errorf("checklog: write %s entry: %w", entry.Decision, err)
	}
	return nil
}
