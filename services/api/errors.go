package api

import (
	"errors"
	"net/http"

	"medrecords/pkg/validate"
	"medrecords/services/audit"
	"medrecords/services/evidence"
	"medrecords/services/identity"
	"medrecords/services/records"
)

var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusBadRequest, []error{
		validate.ErrInvalid,
		audit.ErrReasonRequired,
		audit.ErrInvalidChange,
		records.ErrNoChanges,
		identity.ErrPasswordTooShort,
		identity.ErrPasswordMismatch,
		evidence.ErrEmpty,
	}},
	{http.StatusUnauthorized, []error{
		identity.ErrInvalidCredentials,
		identity.ErrInvalidToken,
		identity.ErrSessionExpired,
		identity.ErrSessionRevoked,
	}},
	{http.StatusForbidden, []error{
		identity.ErrInactiveStaff,
		identity.ErrInvalidSetupKey,
		records.ErrForbidden,
	}},
	{http.StatusNotFound, []error{
		records.ErrNotFound,
		identity.ErrNotFound,
	}},
	{http.StatusConflict, []error{
		audit.ErrVersionConflict,
		records.ErrNINTaken,
		records.ErrAlreadySigned,
		records.ErrNotSigned,
		identity.ErrUsernameTaken,
		identity.ErrEmailTaken,
		identity.ErrSetupComplete,
		identity.ErrAlreadyVerified,
	}},
	{http.StatusRequestEntityTooLarge, []error{evidence.ErrTooLarge}},
	{http.StatusUnsupportedMediaType, []error{evidence.ErrUnsupportedType}},
	{http.StatusServiceUnavailable, []error{records.ErrNoEvidence}},
}

func statusFor(err error) int {
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}
	return http.StatusInternalServerError
}

// fail maps a service error to its status code. Unexpected errors are logged and
// reported without detail.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log(r).Error().Err(err).Msg("request failed")
		if status == http.StatusInternalServerError {
			err = errors.New("internal server error")
		}
	}
	respondError(w, status, err)
}
