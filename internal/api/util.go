package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/org/fleetadmin/internal/access"
	"github.com/org/fleetadmin/internal/backup"
	"github.com/org/fleetadmin/internal/credential"
	"github.com/org/fleetadmin/internal/records"
	"github.com/org/fleetadmin/internal/session"
	"github.com/org/fleetadmin/internal/storage"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"errors":[%q]}`, msg)
}

// writeDomainError maps the subsystem's sentinel errors onto HTTP status
// codes. Unknown errors become a 500 without leaking internals.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, records.ErrSearchTerm):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, credential.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, access.ErrAuthorization):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, credential.ErrDuplicateAccount),
		errors.Is(err, records.ErrDuplicateSerial),
		errors.Is(err, storage.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, backup.ErrRestoreCode), errors.Is(err, storage.ErrCodeUsed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, session.ErrIntegrity):
		writeError(w, http.StatusInternalServerError, "audit log unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
