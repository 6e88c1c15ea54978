package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"medrecords/services/audit"
	"medrecords/services/identity"
	"medrecords/services/records"
)

// editRequest is the body of an administrator's governed edit.
type editRequest[P any] struct {
	Reason          string `json:"reason"`
	ExpectedVersion int    `json:"expected_version"`
	Changes         P      `json:"changes"`
}

func (a *API) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req identity.AdminInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	admin, err := a.identity.CreateAdmin(ctx, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"admin": admin})
}

func (a *API) handleListPatients(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := intQuery(r, "offset")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	patients, err := a.records.ListPatients(ctx, records.PatientFilter{
		Query:  r.URL.Query().Get("q"),
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"patients": patients})
}

func (a *API) handleEditPatient(w http.ResponseWriter, r *http.Request) {
	governedEdit(a, w, r, "patient", a.records.EditPatient)
}

func (a *API) handleEditConsultation(w http.ResponseWriter, r *http.Request) {
	governedEdit(a, w, r, "consultation", a.records.EditConsultation)
}

func (a *API) handleEditPrescription(w http.ResponseWriter, r *http.Request) {
	governedEdit(a, w, r, "prescription", a.records.EditPrescription)
}

// governedEdit decodes an editRequest and applies it on behalf of the calling
// administrator. The response carries the updated record and its audit entry.
func governedEdit[P, T any](a *API, w http.ResponseWriter, r *http.Request, key string, edit func(context.Context, uuid.UUID, P, records.EditMeta) (T, audit.Entry, error)) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req editRequest[P]
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	updated, entry, err := edit(ctx, id, req.Changes, records.EditMeta{
		ActorID:         p.SubjectID,
		Reason:          req.Reason,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log(r).Info().
		Str("audit_id", entry.ID.String()).
		Str("table", entry.Table).
		Str("record_id", entry.RecordID).
		Msg("governed record edited")
	respondJSON(w, http.StatusOK, map[string]any{key: updated, "audit_entry": entry})
}

func (a *API) handlePendingStaff(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	staff, err := a.identity.PendingStaff(ctx)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"staff": staff})
}

func (a *API) handleApproveStaff(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req identity.Approval
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	staff, entry, err := a.identity.ApproveStaff(ctx, p.SubjectID, id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"staff": staff, "audit_entry": entry})
}

func (a *API) handleRejectStaff(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entry, err := a.identity.RejectStaff(ctx, p.SubjectID, id, req.Reason)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit_entry": entry})
}
