package httpx

import (
	"errors"
	"net/http"

	"github.com/stockgate/stockgate/internal/shared"
)

// Stable error codes surfaced to API consumers.
const (
	CodeValidation    = "INV_VAL_001"
	CodeNotFound      = "INV_NTF_001"
	CodeConflict      = "INV_BIZ_001"
	CodeNegativeStock = "INV_BIZ_002"
	CodeAuth          = "INV_AUTH_001"
	CodeInternal      = "INV_SYS_001"
)

// RespondError maps the shared error taxonomy to HTTP status + code. The
// mapping is 1:1; anything outside the taxonomy becomes an opaque 500.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		Fail(w, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Fail(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, shared.ErrNegativeStock):
		Fail(w, http.StatusConflict, CodeNegativeStock, err.Error())
	case errors.Is(err, shared.ErrConflict):
		Fail(w, http.StatusConflict, CodeConflict, err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Fail(w, http.StatusUnauthorized, CodeAuth, err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Fail(w, http.StatusForbidden, CodeAuth, err.Error())
	default:
		Fail(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
