package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper/checklog"
	"github.com/xraph/gatekeeper/id"
)

func (a *API) registerCheckLogRoutes(router forge.Router) error {
	g := router.Group("/v1/gatekeeper", forge.WithGroupTags("check-logs"))

	if err := g.GET("/check-logs/:logId", a.getCheckLog,
		forge.WithSummary("Get check log entry"),
		forge.WithOperationID("getCheckLog"),
		forge.WithResponseSchema(http.StatusOK, "Check log entry", &checklog.Entry{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/check-logs", a.listCheckLogs,
		forge.WithSummary("Query check logs"),
		forge.WithDescription("Returns recorded decisions, newest first, with optional filters."),
		forge.WithOperationID("listCheckLogs"),
		forge.WithRequestSchema(ListCheckLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Check log list", []*checklog.Entry{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getCheckLog(ctx forge.Context, _ *GetCheckLogRequest) (*checklog.Entry, error) {
	logID, err := id.ParseCheckLogID(ctx.Param("logId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid check log ID: %v", err))
	}

	e, err := a.eng.Store().GetCheckLog(ctx.Context(), logID)
	if err != nil {
		return nil, mapError(err)
	}

	return e, ctx.JSON(http.StatusOK, e)
}

func (a *API) listCheckLogs(ctx forge.Context, req *ListCheckLogsRequest) ([]*checklog.Entry, error) {
	filter := &checklog.QueryFilter{
		SubjectID:    req.SubjectID,
		ResourceKind: req.ResourceKind,
		ResourceID:   req.ResourceID,
		Decision:     req.Decision,
		Limit:        defaultLimit(req.Limit),
		Offset:       req.Offset,
	}

	if req.After != "" {
		t, err := time.Parse(time.RFC3339, req.After)
		if err != nil {
			return nil, forge.BadRequest("invalid after timestamp")
		}
		filter.After = &t
	}
	if req.Before != "" {
		t, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return nil, forge.BadRequest("invalid before timestamp")
		}
		filter.Before = &t
	}

	logs, err := a.eng.Store().ListCheckLogs(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	return logs, ctx.JSON(http.StatusOK, logs)
}
