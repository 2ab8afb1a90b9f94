package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/gatekeeper"
	"github.com/xraph/gatekeeper/checklog"
)

// mapError maps domain errors to Forge HTTP errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gatekeeper.ErrPermissionNotFound) || errors.Is(err, checklog.ErrNotFound) {
		return forge.NotFound(err.Error())
	}
	if errors.Is(err, gatekeeper.ErrInvalidPermission) || gatekeeper.IsValidation(err) {
		return forge.BadRequest(err.Error())
	}
	if errors.Is(err, gatekeeper.ErrAccessDenied) {
		return forge.Forbidden(err.Error())
	}
	return err
}

func defaultLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}
