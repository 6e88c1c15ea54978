package api

import (
	"net/http"

	"medrecords/services/identity"
)

func (a *API) handleAdminSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SetupKey string `json:"setup_key"`
		identity.AdminInput
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	admin, err := a.identity.SetupAdmin(ctx, req.SetupKey, req.AdminInput)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.log(r).Info().Str("admin_id", admin.ID.String()).Msg("initial administrator created")
	respondJSON(w, http.StatusCreated, map[string]any{"admin": admin})
}

func (a *API) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	login, err := a.identity.LoginAdmin(ctx, req.Username, req.Password, sessionMeta(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": login})
}

func (a *API) handleStaffRegister(w http.ResponseWriter, r *http.Request) {
	var req identity.StaffRegistration
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	staff, err := a.identity.RegisterStaff(ctx, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"staff": staff})
}

func (a *API) handleStaffLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		// Identifier is an email address or staff id.
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	login, err := a.identity.LoginStaff(ctx, req.Identifier, req.Password, sessionMeta(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": login})
}

func (a *API) handlePatientLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		HealthMRID string `json:"healthmr_id"`
		// Identifier is the NIN or temporary id on file.
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	login, err := a.identity.LoginPatient(ctx, req.HealthMRID, req.Identifier, req.Password, sessionMeta(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"session": login})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFrom(r.Context())

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.identity.Logout(ctx, p.SessionID); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
