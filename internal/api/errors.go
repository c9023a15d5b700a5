// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/dossier-engine/internal/dossier"
	"github.com/pdiddy/dossier-engine/internal/questionnaire"
	"github.com/pdiddy/dossier-engine/internal/remote"
	"github.com/pdiddy/dossier-engine/internal/session"
	"github.com/pdiddy/dossier-engine/internal/store"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    string                           `json:"code"`
	Message string                           `json:"message"`
	Errors  []*questionnaire.ValidationError `json:"errors,omitempty"`
}

// classify maps an error to a status code and a body safe to show the user.
func classify(err error) (int, ErrorBody) {
	var (
		verrs questionnaire.ValidationErrors
		verr  *questionnaire.ValidationError
		gerr  *dossier.GenerationError
		perr  *dossier.PersistError
	)
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    "validation_failed",
			Message: "Some answers need attention before you can continue.",
			Errors:  verrs,
		}
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, ErrorBody{
			Code:    "validation_failed",
			Message: verr.Reason,
			Errors:  []*questionnaire.ValidationError{verr},
		}
	case errors.Is(err, dossier.ErrInvalidPosition):
		return http.StatusUnprocessableEntity, ErrorBody{Code: "invalid_position", Message: firstMessage(err)}

	case errors.Is(err, dossier.ErrConflict),
		errors.Is(err, dossier.ErrSectionLocked),
		errors.Is(err, dossier.ErrSaveInFlight),
		errors.Is(err, dossier.ErrUnsavedChanges),
		errors.Is(err, dossier.ErrNotEditing),
		errors.Is(err, dossier.ErrDossierReplaced):
		return http.StatusConflict, ErrorBody{Code: "conflict", Message: firstMessage(err)}

	case errors.Is(err, dossier.ErrSectionNotFound),
		errors.Is(err, dossier.ErrNoDossier),
		errors.Is(err, questionnaire.ErrUnknownSection),
		errors.Is(err, questionnaire.ErrUnknownQuestion),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: "not_found", Message: firstMessage(err)}

	case errors.Is(err, session.ErrNoGenerator):
		return http.StatusServiceUnavailable, ErrorBody{
			Code:    "generation_disabled",
			Message: "Text generation is not available.",
		}
	case errors.As(err, &gerr):
		return http.StatusBadGateway, ErrorBody{
			Code:    "generation_unavailable",
			Message: "Text generation is unavailable right now. Please try again.",
		}
	case errors.As(err, &perr), remote.IsTransient(err):
		return http.StatusServiceUnavailable, ErrorBody{
			Code:    "store_unavailable",
			Message: "Your changes could not be saved right now. Please try again.",
		}
	}
	return http.StatusInternalServerError, ErrorBody{
		Code:    "internal",
		Message: "Something went wrong. Please try again.",
	}
}

// firstMessage returns the message of the sentinel the error chain ends in.
func firstMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Code: "bad_request", Message: message})
}
