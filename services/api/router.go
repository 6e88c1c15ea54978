package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medrecords/pkg/telemetry"
	"medrecords/services/identity"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(telemetry.Middleware(serviceName, a.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   a.config.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}))
	r.Use(instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", a.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	staff := requireRole(identity.RoleStaff)
	clinicians := requireRole(identity.RoleStaff, identity.RoleAdmin)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/admin/setup", a.handleAdminSetup)
			r.Post("/staff/register", a.handleStaffRegister)
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(a.config.LoginLimit, a.config.LoginWindow))
				r.Post("/admin/login", a.handleAdminLogin)
				r.Post("/staff/login", a.handleStaffLogin)
				r.Post("/patient/login", a.handlePatientLogin)
			})
			r.With(a.authenticate).Post("/logout", a.handleLogout)
		})

		r.Post("/patients", a.handleRegisterPatient)

		r.Group(func(r chi.Router) {
			r.Use(a.authenticate)

			r.With(clinicians).Get("/patients/lookup", a.handleLookupPatient)
			r.Get("/patients/{id}/record", a.handleRecordView)
			r.With(requireRole(identity.RolePatient)).Post("/patients/{id}/vitals", a.handleAddVital)

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Get("/lab-tests/catalogue", a.handleLabCatalogue)
				r.Post("/patients/{id}/consultations", a.handleCreateConsultation)
				r.Put("/consultations/{id}", a.handleUpdateConsultation)
				r.Post("/consultations/{id}/sign", a.handleSignConsultation)
				r.Post("/patients/{id}/prescriptions", a.handleCreatePrescription)
				r.Put("/prescriptions/{id}", a.handleUpdatePrescription)
				r.Post("/prescriptions/{id}/sign", a.handleSignPrescription)
				r.Post("/patients/{id}/lab-tests", a.handleAddLabTest)
			})

			r.With(clinicians).Get("/consultations/{id}/signature", a.handleConsultationSignature)
			r.With(clinicians).Get("/prescriptions/{id}/signature", a.handlePrescriptionSignature)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireRole(identity.RoleAdmin))
				r.Post("/admins", a.handleCreateAdmin)
				r.Get("/patients", a.handleListPatients)
				r.Patch("/patients/{id}", a.handleEditPatient)
				r.Patch("/consultations/{id}", a.handleEditConsultation)
				r.Patch("/prescriptions/{id}", a.handleEditPrescription)
				r.Get("/staff/pending", a.handlePendingStaff)
				r.Post("/staff/{id}/approve", a.handleApproveStaff)
				r.Post("/staff/{id}/reject", a.handleRejectStaff)
			})

			r.With(requireRole(identity.RoleAdmin)).Get("/audit/{table}/{recordId}", a.handleTrail)
		})
	})

	return r, nil
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.ready(ctx); err != nil {
		a.log(r).Warn().Err(err).Msg("readiness check failed")
		respondError(w, http.StatusServiceUnavailable, errors.New("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
