package errcode

import (
	"net/http"

	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
)

func HTTPStatus(kind appErr.Kind) int {
	switch kind {
	case appErr.KindValidation, appErr.KindConflict, appErr.KindInvalidCredentials, appErr.KindNotFoundOrExpired:
		return http.StatusBadRequest
	case appErr.KindUnauthorized:
		return http.StatusUnauthorized
	case appErr.KindTooMany:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
