package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsAdmissionError(err), domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicErrorMessage returns the text safe to show a caller. Details of
// unexpected failures stay in the logs.
func publicErrorMessage(err error) string {
	switch mapErrorToHTTPStatus(err) {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnauthorized:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	default:
		return domain.MsgInternalClassifying
	}
}
