package api

import (
	"context"
	"errors"
	"mime"
	"net/http"

	"github.com/google/uuid"

	"medrecords/services/evidence"
	"medrecords/services/records"
)

// slipField is the multipart field carrying an optional lab slip.
const slipField = "lab_slip"

func (a *API) handleCreateConsultation(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req records.ConsultationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.records.CreateConsultation(ctx, p.SubjectID, patientID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"consultation": c})
}

func (a *API) handleUpdateConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req records.ConsultationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.records.UpdateConsultationDraft(ctx, p.SubjectID, id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"consultation": c})
}

func (a *API) handleSignConsultation(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	c, err := a.records.SignConsultation(ctx, p.SubjectID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"consultation": c})
}

func (a *API) handleCreatePrescription(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req records.PrescriptionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	rx, err := a.records.CreatePrescription(ctx, p.SubjectID, patientID, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"prescription": rx})
}

func (a *API) handleUpdatePrescription(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	var req records.PrescriptionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	rx, err := a.records.UpdatePrescriptionDraft(ctx, p.SubjectID, id, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prescription": rx})
}

func (a *API) handleSignPrescription(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	rx, err := a.records.SignPrescription(ctx, p.SubjectID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"prescription": rx})
}

func (a *API) handleLabCatalogue(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"tests": records.CommonTests})
}

// handleAddLabTest accepts either a JSON body or a multipart form whose optional
// lab_slip part is uploaded as evidence.
func (a *API) handleAddLabTest(w http.ResponseWriter, r *http.Request) {
	patientID, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	p, _ := principalFrom(r.Context())

	var (
		in   records.LabTestInput
		slip *records.Slip
	)
	media, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if media == "multipart/form-data" {
		// Leave room for the other form fields on top of the slip itself.
		r.Body = http.MaxBytesReader(w, r.Body, evidence.MaxSize+multipartFormMemory)
		if err := r.ParseMultipartForm(multipartFormMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				a.fail(w, r, evidence.ErrTooLarge)
				return
			}
			respondError(w, http.StatusBadRequest, err)
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		in = records.LabTestInput{
			TestType:       r.FormValue("test_type"),
			CustomTestName: r.FormValue("custom_test_name"),
			Results:        r.FormValue("results"),
			Notes:          r.FormValue("notes"),
		}

		file, header, err := r.FormFile(slipField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			respondError(w, http.StatusBadRequest, err)
			return
		default:
			defer file.Close()
			slip = &records.Slip{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		}
	} else if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	// Uploads get the full request budget rather than the per-query timeout.
	test, err := a.records.AddLabTest(r.Context(), p.SubjectID, patientID, in, slip)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	event := a.log(r).Info().Str("lab_test_id", test.ID.String()).Str("patient_id", patientID.String())
	if slip != nil {
		event = event.Str("slip", slip.Filename)
	}
	event.Msg("lab test recorded")
	respondJSON(w, http.StatusCreated, map[string]any{"lab_test": test})
}

func (a *API) handleConsultationSignature(w http.ResponseWriter, r *http.Request) {
	a.respondBadge(w, r, a.records.ConsultationBadge)
}

func (a *API) handlePrescriptionSignature(w http.ResponseWriter, r *http.Request) {
	a.respondBadge(w, r, a.records.PrescriptionBadge)
}

func (a *API) respondBadge(w http.ResponseWriter, r *http.Request, load func(ctx context.Context, id uuid.UUID) (records.Badge, error)) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	badge, err := load(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if r.URL.Query().Get("format") == "text" {
		respondText(w, http.StatusOK, badge.Text)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"badge": badge})
}
