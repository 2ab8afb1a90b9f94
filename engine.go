package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/gatekeeper/id"
	"github.com/xraph/gatekeeper/permission"
	"github.com/xraph/gatekeeper/plugin"
	"github.com/xraph/gatekeeper/resource"
	"github.com/xraph/gatekeeper/store"
)

// Engine is the authorization engine. It loads candidate permissions from
// the store, evaluates their conditions against resource attributes and
// fires plugin hooks. It holds no per-request state.
type Engine struct {
	store    store.Store
	resolver AttributeResolver
	cache    Cache
	plugins  *plugin.Registry
	pending  []plugin.Plugin
	logger   *slog.Logger
	config   Config
}

// NewEngine creates a new engine with the given options.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if len(e.pending) > 0 {
		e.plugins = plugin.NewRegistry(e.logger)
		for _, p := range e.pending {
			e.plugins.Register(p)
		}
		e.pending = nil
	}
	if e.store == nil {
		return nil, errors.New("gatekeeper: store is required")
	}
	if e.config.MaxConditions < 0 {
		return nil, fmt.Errorf("gatekeeper: max conditions must not be negative, got %d", e.config.MaxConditions)
	}
	return e, nil
}

// Store returns the underlying composite store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry (may be nil).
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Start performs any startup initialization.
func (e *Engine) Start(_ context.Context) error { return nil }

// Stop notifies plugins of shutdown.
func (e *Engine) Stop(ctx context.Context) error {
	if e.plugins != nil {
		e.plugins.EmitShutdown(ctx)
	}
	return nil
}

// Check decides whether subject may perform path.Method on the resource
// path addresses. A nil subject is anonymous.
//
// The returned result is never nil. When err is non-nil the decision is
// DecisionDenyError; err wraps ErrPersistence unless the context ended.
func (e *Engine) Check(ctx context.Context, subject *Subject, path ParsedPath) (*CheckResult, error) {
	start := time.Now()
	req := &CheckRequest{Subject: subject, Path: path}

	if e.plugins != nil {
		e.plugins.EmitBeforeCheck(ctx, req)
	}

	// Cached decisions still reach the after-check hooks so every decision
	// is audited.
	if e.cacheEnabled() {
		if cached, ok := e.cache.Get(ctx, subject, path); ok {
			out := *cached
			out.EvalTimeNs = time.Since(start).Nanoseconds()
			if e.plugins != nil {
				e.plugins.EmitAfterCheck(ctx, req, &out)
			}
			return &out, nil
		}
	}

	result, err := e.decide(ctx, subject, path)
	result.EvalTimeNs = time.Since(start).Nanoseconds()

	e.logDisqualified(ctx, subject, path, result.Disqualified)
	if err != nil {
		e.logger.Error("authorization check failed",
			slog.String("subject", subject.String()),
			slog.String("method", path.Method),
			slog.String("kind", string(path.Kind)),
			slog.String("error", err.Error()),
		)
		if e.plugins != nil {
			e.plugins.EmitCheckFailed(ctx, req, err)
		}
	} else if e.cacheEnabled() {
		e.cache.Set(ctx, subject, path, result)
	}

	if e.plugins != nil {
		e.plugins.EmitAfterCheck(ctx, req, result)
	}
	return result, err
}

func (e *Engine) decide(ctx context.Context, subject *Subject, path ParsedPath) (*CheckResult, error) {
	if err := ctx.Err(); err != nil {
		return denyError("evaluation cancelled", nil), err
	}

	cands, err := e.store.ListCandidates(ctx, &permission.CandidateQuery{
		Object:   string(path.Kind),
		Actions:  actionSelectors(path.Method),
		Subjects: subjectSelectors(subject),
	})
	if err != nil {
		if isCancellation(err) {
			return denyError("evaluation cancelled", nil), err
		}
		return denyError("permission store unavailable", nil), fmt.Errorf("%w: list candidates: %w", ErrPersistence, err)
	}

	// Backends filter already; a candidate that slips through must not grant.
	matched := make([]*permission.Permission, 0, len(cands))
	for _, c := range cands {
		if matchSubject(c.Subject, subject) && matchObject(c.Object, path.Kind) && matchAction(c.Action, path.Method) {
			matched = append(matched, c)
		}
	}

	resolver := e.resolver
	if resolver == nil {
		resolver = NewTableResolver(newMemoResolver(e.store))
	}

	result, err := Decide(ctx, matched, path, resolver)
	if err != nil && !isCancellation(err) {
		return result, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return result, err
}

func (e *Engine) logDisqualified(ctx context.Context, subject *Subject, path ParsedPath, disq []Disqualification) {
	for _, d := range disq {
		level := slog.LevelWarn
		if IsValidation(d.Err) {
			level = slog.LevelError
		}
		e.logger.Log(ctx, level, "permission disqualified",
			slog.String("permission", d.PermissionID),
			slog.String("condition", d.Condition),
			slog.String("subject", subject.String()),
			slog.String("kind", string(path.Kind)),
			slog.String("resource_id", path.ResourceID.String()),
			slog.String("reason", d.Reason),
		)
	}
}

// Allowed is a shorthand for Check that reports false on any error.
func (e *Engine) Allowed(ctx context.Context, subject *Subject, path ParsedPath) bool {
	result, err := e.Check(ctx, subject, path)
	return err == nil && result.Allowed
}

// Enforce returns an error if the check is denied.
func (e *Engine) Enforce(ctx context.Context, subject *Subject, path ParsedPath) error {
	result, err := e.Check(ctx, subject, path)
	if err != nil {
		return fmt.Errorf("gatekeeper check: %w", err)
	}
	if !result.Allowed {
		return fmt.Errorf("%w: %s: %s", ErrAccessDenied, result.Decision, result.Reason)
	}
	return nil
}

func (e *Engine) cacheEnabled() bool { return e.cache != nil && e.config.cacheEnabled() }

func (e *Engine) invalidateCache(ctx context.Context) {
	if e.cache != nil {
		e.cache.InvalidateAll(ctx)
	}
}

// ──────────────────────────────────────────────────
// Permission authoring
// ──────────────────────────────────────────────────

// NewPermission is the input for creating or replacing a permission.
type NewPermission struct {
	CreatorID  uuid.UUID      `json:"creator_id"`
	Subject    string         `json:"subject"`
	Object     string         `json:"object"`
	Action     string         `json:"action"`
	Conditions []NewCondition `json:"conditions,omitempty"`
}

// NewCondition is one condition of a NewPermission.
type NewCondition struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ValidatePermission checks np against the selector grammar, the resource
// kinds and the attribute catalog.
func (e *Engine) ValidatePermission(np *NewPermission) error {
	if np == nil {
		return fmt.Errorf("%w: nil permission", ErrInvalidPermission)
	}
	if !validSubject(np.Subject) {
		return fmt.Errorf("%w: subject %q", ErrInvalidPermission, np.Subject)
	}
	if !resource.Kind(np.Object).Known() {
		return fmt.Errorf("%w: object %q", ErrInvalidPermission, np.Object)
	}
	if !validAction(np.Action) {
		return fmt.Errorf("%w: action %q", ErrInvalidPermission, np.Action)
	}
	if limit := e.config.MaxConditions; limit > 0 && len(np.Conditions) > limit {
		return fmt.Errorf("%w: %d > %d", ErrTooManyConditions, len(np.Conditions), limit)
	}
	for _, c := range np.Conditions {
		if err := ValidateCondition(c.Name, c.Value); err != nil {
			return err
		}
	}
	return nil
}

// CreatePermission validates np and persists it as a new permission.
func (e *Engine) CreatePermission(ctx context.Context, np *NewPermission) (*permission.Permission, error) {
	if err := e.ValidatePermission(np); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &permission.Permission{
		ExternalID: id.NewPermissionID(),
		CreatorID:  np.CreatorID,
		Subject:    np.Subject,
		Object:     np.Object,
		Action:     np.Action,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	p.Conditions = buildConditions(np, now)

	if err := e.store.CreatePermission(ctx, p); err != nil {
		return nil, fmt.Errorf("gatekeeper: create permission: %w", err)
	}
	e.invalidateCache(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionCreated(ctx, p)
	}
	return p, nil
}

// UpdatePermission replaces subject, object, action and every condition of
// an existing permission.
func (e *Engine) UpdatePermission(ctx context.Context, permID id.PermissionID, np *NewPermission) (*permission.Permission, error) {
	if err := e.ValidatePermission(np); err != nil {
		return nil, err
	}
	p, err := e.GetPermission(ctx, permID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p.Subject = np.Subject
	p.Object = np.Object
	p.Action = np.Action
	p.UpdatedAt = now
	p.Conditions = buildConditions(np, now)
	for i := range p.Conditions {
		p.Conditions[i].PermissionID = p.ID
	}

	if err := e.store.UpdatePermission(ctx, p); err != nil {
		return nil, mapPermissionErr(err, permID, "update")
	}
	e.invalidateCache(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionUpdated(ctx, p)
	}
	return p, nil
}

// DeletePermission removes a permission and its conditions.
func (e *Engine) DeletePermission(ctx context.Context, permID id.PermissionID) error {
	if err := e.store.DeletePermission(ctx, permID); err != nil {
		return mapPermissionErr(err, permID, "delete")
	}
	e.invalidateCache(ctx)
	if e.plugins != nil {
		e.plugins.EmitPermissionDeleted(ctx, permID)
	}
	return nil
}

// GetPermission returns a permission with its conditions.
func (e *Engine) GetPermission(ctx context.Context, permID id.PermissionID) (*permission.Permission, error) {
	p, err := e.store.GetPermission(ctx, permID)
	if err != nil {
		return nil, mapPermissionErr(err, permID, "get")
	}
	return p, nil
}

// ListPermissions returns a page of permissions matching filter and the
// total number of matches.
func (e *Engine) ListPermissions(ctx context.Context, filter *permission.ListFilter) ([]*permission.Permission, int64, error) {
	if filter == nil {
		filter = &permission.ListFilter{}
	}
	perms, err := e.store.ListPermissions(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("gatekeeper: list permissions: %w", err)
	}
	total, err := e.store.CountPermissions(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("gatekeeper: count permissions: %w", err)
	}
	return perms, total, nil
}

func buildConditions(np *NewPermission, now time.Time) []permission.Condition {
	if len(np.Conditions) == 0 {
		return nil
	}
	out := make([]permission.Condition, 0, len(np.Conditions))
	for _, c := range np.Conditions {
		out = append(out, permission.Condition{
			ExternalID: id.NewConditionID(),
			CreatorID:  np.CreatorID,
			Name:       c.Name,
			Value:      c.Value,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return out
}

func mapPermissionErr(err error, permID id.PermissionID, op string) error {
	if errors.Is(err, permission.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrPermissionNotFound, permID)
	}
	return fmt.Errorf("gatekeeper: %s permission %s: %w", op, permID, err)
}
