package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper"
)

func (a *API) registerCheckRoutes(router forge.Router) error {
	g := router.Group("/v1/gatekeeper", forge.WithGroupTags("authorization"))

	if err := g.POST("/check", a.check,
		forge.WithSummary("Explain an authorization decision"),
		forge.WithDescription("Runs the decision the gate would make for the subject, method and path, and returns it with its reason."),
		forge.WithOperationID("gatekeeperCheck"),
		forge.WithRequestSchema(CheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check result", CheckResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/batch-check", a.batchCheck,
		forge.WithSummary("Explain several decisions"),
		forge.WithDescription("Evaluates multiple checks in one request."),
		forge.WithOperationID("gatekeeperBatchCheck"),
		forge.WithRequestSchema(BatchCheckRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Batch results", BatchCheckResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) check(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	if req.Method == "" || req.Path == "" {
		return nil, forge.BadRequest("method and path are required")
	}

	resp, err := a.runCheck(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) batchCheck(ctx forge.Context, req *BatchCheckRequest) (*BatchCheckResponse, error) {
	if len(req.Checks) == 0 {
		return nil, forge.BadRequest("checks cannot be empty")
	}

	results := make([]CheckResponse, len(req.Checks))
	for i := range req.Checks {
		if req.Checks[i].Method == "" || req.Checks[i].Path == "" {
			return nil, forge.BadRequest("method and path are required")
		}
		resp, err := a.runCheck(ctx, &req.Checks[i])
		if err != nil {
			return nil, err
		}
		results[i] = *resp
	}

	resp := &BatchCheckResponse{Results: results}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) runCheck(ctx forge.Context, req *CheckRequest) (*CheckResponse, error) {
	path := gatekeeper.ParsePath(req.Method, req.Path)
	result, err := a.eng.Check(ctx.Context(), toSubject(req), path)
	if err != nil {
		return nil, mapError(err)
	}
	return toCheckResponse(path, result), nil
}

func toSubject(r *CheckRequest) *gatekeeper.Subject {
	if r.SubjectID == "" {
		return nil
	}
	return &gatekeeper.Subject{ID: r.SubjectID, Roles: r.Roles}
}

func toCheckResponse(path gatekeeper.ParsedPath, r *gatekeeper.CheckResult) *CheckResponse {
	resp := &CheckResponse{
		Allowed:    r.Allowed,
		Decision:   string(r.Decision),
		Reason:     r.Reason,
		Kind:       string(path.Kind),
		EvalTimeNs: r.EvalTimeNs,
	}
	if path.HasResource() {
		resp.ResourceID = path.ResourceID.String()
	}
	for _, m := range r.MatchedBy {
		resp.MatchedBy = append(resp.MatchedBy, MatchInfo{
			PermissionID: m.PermissionID,
			Subject:      m.Subject,
			Action:       m.Action,
			Detail:       m.Detail,
		})
	}
	for _, d := range r.Disqualified {
		resp.Disqualified = append(resp.Disqualified, Disqualification{
			PermissionID: d.PermissionID,
			Condition:    d.Condition,
			Reason:       d.Reason,
		})
	}
	return resp
}
