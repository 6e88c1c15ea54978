package api

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"medrecords/pkg/render"
	"medrecords/services/audit"
)

var auditedTables = []string{
	audit.TablePatients,
	audit.TableConsultations,
	audit.TablePrescriptions,
	audit.TableMedicalStaff,
}

func (a *API) handleTrail(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	recordID := chi.URLParam(r, "recordId")
	if !slices.Contains(auditedTables, table) {
		respondError(w, http.StatusBadRequest, fmt.Errorf("table %q is not audited", table))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.trail.Trail(ctx, table, recordID)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "text" {
		out, err := a.renderer.Render(render.Trail, map[string]any{
			"Table":    table,
			"RecordID": recordID,
			"Entries":  entries,
		})
		if err != nil {
			a.fail(w, r, err)
			return
		}
		respondText(w, http.StatusOK, out)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"table":     table,
		"record_id": recordID,
		"entries":   entries,
	})
}
