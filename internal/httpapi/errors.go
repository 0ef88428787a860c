package httpapi

import (
	"errors"
	"net/http"

	"gitlab.com/brivano/api/livedesk-handoff-service/internal/apperrors"
	"gitlab.com/brivano/api/livedesk-handoff-service/pkg/utils"
)

// ErrorResponse is the JSON error envelope returned on every failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps the application error taxonomy onto HTTP statuses. Race
// losses (AlreadyAssigned) and stale views (HandoffNotActive) are conflicts
// the UI handles by refreshing, not server errors.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case apperrors.IsInvalidTenantError(err):
		status = http.StatusBadRequest
		code = "invalid_tenant"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "unauthorized"
	case apperrors.IsValidationError(err), apperrors.IsBadRequestError(err):
		status = http.StatusBadRequest
		code = "validation_failed"
	case apperrors.IsNotFoundError(err):
		status = http.StatusNotFound
		code = "not_found"
	case apperrors.IsAlreadyAssignedError(err):
		status = http.StatusConflict
		code = "already_assigned"
	case apperrors.IsHandoffNotActiveError(err):
		status = http.StatusConflict
		code = "handoff_not_active"
	case apperrors.IsCapacityExceededError(err):
		status = http.StatusConflict
		code = "capacity_exceeded"
	case apperrors.IsAgentUnavailableError(err):
		status = http.StatusConflict
		code = "agent_unavailable"
	case apperrors.IsDuplicateError(err):
		status = http.StatusConflict
		code = "duplicate"
	case apperrors.IsStorageUnavailableError(err):
		status = http.StatusServiceUnavailable
		code = "storage_unavailable"
	}

	utils.WriteJSONResponse(w, status, ErrorResponse{Error: err.Error(), Code: code})
}
