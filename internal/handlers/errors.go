package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"peerprep/interview/internal/errs"
	"peerprep/interview/internal/utils"
)

// writeError maps domain errors onto status codes. Anything unrecognized is
// logged and reported as a 500 without leaking the cause.
func writeError(writer http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, errs.ErrInvalid):
		utils.JSONError(writer, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, errs.ErrUnauthenticated):
		utils.JSONError(writer, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, errs.ErrForbidden):
		utils.JSONError(writer, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, errs.ErrNotFound):
		utils.JSONError(writer, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, errs.ErrCapacityExceeded):
		utils.JSONError(writer, http.StatusConflict, "session_full", err.Error())
	case errors.Is(err, errs.ErrAlreadyJoined):
		utils.JSONError(writer, http.StatusConflict, "already_joined", err.Error())
	case errors.Is(err, errs.ErrConflict):
		utils.JSONError(writer, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Error(fallback, zap.Error(err))
		utils.JSONError(writer, http.StatusInternalServerError, "internal_error", fallback)
	}
}
