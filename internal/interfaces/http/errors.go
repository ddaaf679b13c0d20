package http

import (
	"errors"
	"net/http"

	"github.com/garyjia/budget-gate/internal/domain/apperr"
)

func errorBody(err error) (int, *ErrorBody) {
	var (
		validation *apperr.ValidationError
		notFound   *apperr.NotFoundError
		conflict   *apperr.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, &ErrorBody{Kind: "validation", Field: validation.Field, Message: validation.Error()}
	case errors.As(err, &notFound):
		return http.StatusNotFound, &ErrorBody{Kind: "not_found", Message: notFound.Error()}
	case errors.As(err, &conflict):
		return http.StatusConflict, &ErrorBody{
			Kind:      "conflict",
			Code:      conflict.Code,
			Message:   conflict.Message,
			Available: conflict.Available,
			Required:  conflict.Required,
		}
	default:
		// Store details stay in the log
		return http.StatusInternalServerError, &ErrorBody{Kind: "internal", Message: "internal error"}
	}
}
