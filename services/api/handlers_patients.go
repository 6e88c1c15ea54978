package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"medrecords/services/identity"
	"medrecords/services/records"
)

var errHealthMRRequired = errors.New("healthmr_id is required")

func (a *API) handleRegisterPatient(w http.ResponseWriter, r *http.Request) {
	var req records.PatientRegistration
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	patient, err := a.records.RegisterPatient(ctx, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log(r).Info().
		Str("patient_id", patient.ID.String()).
		Str("record_status", patient.RecordStatus).
		Msg("patient registered")
	respondJSON(w, http.StatusCreated, map[string]any{"patient": patient})
}

func (a *API) handleLookupPatient(w http.ResponseWriter, r *http.Request) {
	healthMRID := strings.TrimSpace(r.URL.Query().Get("healthmr_id"))
	if healthMRID == "" {
		respondError(w, http.StatusBadRequest, errHealthMRRequired)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	patient, err := a.records.PatientByHealthMRID(ctx, healthMRID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"patient": patient})
}

// ownPatient resolves the {id} path parameter. Patients may only address their own
// record.
func ownPatient(r *http.Request) (uuid.UUID, int, error) {
	id, err := uuidParam(r, "id")
	if err != nil {
		return uuid.Nil, http.StatusBadRequest, err
	}
	p, _ := principalFrom(r.Context())
	if p.Role == identity.RolePatient && p.SubjectID != id {
		return uuid.Nil, http.StatusForbidden, errForbidden
	}
	return id, 0, nil
}

func (a *API) handleRecordView(w http.ResponseWriter, r *http.Request) {
	id, status, err := ownPatient(r)
	if err != nil {
		respondError(w, status, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	view, err := a.records.RecordView(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"record": view})
}

func (a *API) handleAddVital(w http.ResponseWriter, r *http.Request) {
	id, status, err := ownPatient(r)
	if err != nil {
		respondError(w, status, err)
		return
	}

	var req records.VitalInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	vital, err := a.records.AddVital(ctx, id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"vital": vital})
}
