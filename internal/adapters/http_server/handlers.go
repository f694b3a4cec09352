// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/app"
	"talok/internal/domain"
	"talok/internal/wizard"
)

// Handlers exposes the use cases over HTTP.
type Handlers struct {
	Properties  *app.PropertyService
	Wizard      *app.WizardService
	Leases      *app.LeaseService
	Invoices    *app.InvoiceService
	Inspections *app.InspectionService
	Exports     *app.ExportService
	Dashboard   *app.DashboardService
	Profiles    *app.ProfileService
}

// MountHandlers registers /healthz and the authenticated /api routes.
func (s *Server) MountHandlers(h *Handlers, authn func(http.Handler) http.Handler) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Use(authn)

		r.Get("/me", h.getMe)
		r.Put("/me", h.putMe)

		r.Route("/properties", func(r chi.Router) {
			r.Get("/", h.listProperties)
			r.Post("/", h.createProperty)
			r.Get("/{id}", h.getProperty)
			r.Patch("/{id}", h.updateProperty)
			r.Delete("/{id}", h.deleteProperty)
			r.Post("/{id}/submit", h.submitProperty)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/properties", h.listReviewQueue)
			r.Post("/properties/{id}/review", h.reviewProperty)
		})

		r.Get("/wizard/config", h.wizardConfig)
		r.Route("/wizard/sessions", func(r chi.Router) {
			r.Post("/", h.startWizard)
			r.Get("/current", h.currentWizard)
			r.Patch("/current", h.updateWizard)
			r.Delete("/current", h.discardWizard)
			r.Get("/current/step", h.wizardStepHTML)
			r.Post("/current/next", h.nextWizard)
			r.Post("/current/previous", h.previousWizard)
			r.Post("/current/submit", h.submitWizard)
		})

		r.Route("/leases", func(r chi.Router) {
			r.Get("/", h.listLeases)
			r.Post("/", h.createLease)
			r.Get("/{id}", h.getLease)
			r.Post("/{id}/send", h.sendLease)
			r.Post("/{id}/sign", h.signLease)
			r.Post("/{id}/terminate", h.terminateLease)
			r.Post("/{id}/renew", h.renewLease)
			r.Post("/{id}/invoices", h.generateInvoice)
			r.Get("/{id}/comparison", h.compareInspections)
		})
		r.Get("/invoices", h.listInvoices)
		r.Post("/invoices/{id}/paid", h.markInvoicePaid)

		r.Route("/inspections", func(r chi.Router) {
			r.Post("/", h.createInspection)
			r.Get("/{id}", h.getInspection)
			r.Put("/{id}/furniture", h.updateFurniture)
			r.Get("/{id}/compliance", h.inspectionCompliance)
			r.Get("/{id}/preview", h.inspectionPreview)
			r.Post("/{id}/sign", h.signInspection)
		})

		r.Get("/exports/{entity}", h.export)
		r.Get("/owner/dashboard", h.ownerDashboard)
	})
}

// ---- responses ----

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

var errBadRequest = errors.New("bad request")

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, domain.ErrValidation),
		errors.Is(err, wizard.ErrUnknownKey), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict),
		errors.Is(err, wizard.ErrSubmitted), errors.Is(err, wizard.ErrFirstStep):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeErrorDetails(w, err, nil)
}

// writeErrorDetails writes err with details; validation errors default to
// their per-field messages.
func writeErrorDetails(w http.ResponseWriter, err error, details any) {
	status := statusOf(err)
	body := errorBody{Error: err.Error(), Details: details}
	var verr *domain.ValidationError
	if errors.As(err, &verr) && details == nil {
		body.Details = verr.Fields
	}
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Msg("request failed")
		body.Error = "internal error"
	case http.StatusGatewayTimeout:
		log.Warn().Err(err).Msg("database timeout")
		body.Error = "database timeout"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeTagged writes body with its ETag, or 304 when the client already has it.
func writeTagged(w http.ResponseWriter, r *http.Request, etag, contentType string, body []byte) {
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write tagged body")
	}
}

// ---- requests ----

const maxBody = 1 << 20

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %v: %w", err, errBadRequest)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s must be a UUID: %w", name, errBadRequest)
	}
	return id, nil
}

func uuidQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be a UUID: %w", name, errBadRequest)
	}
	return &id, nil
}

// page reads limit/offset; limit must lie in 1..200.
func page(r *http.Request) (limit, offset int, err error) {
	limit = 50
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 200 {
			return 0, 0, fmt.Errorf("limit must be an integer between 1 and 200: %w", errBadRequest)
		}
		limit = l
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		o, err := strconv.Atoi(raw)
		if err != nil || o < 0 {
			return 0, 0, fmt.Errorf("offset must be a non-negative integer: %w", errBadRequest)
		}
		offset = o
	}
	return limit, offset, nil
}

func caller(r *http.Request) domain.Identity {
	id, _ := IdentityFrom(r.Context())
	return id
}

// ---- profile ----

func (h *Handlers) getMe(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	p, err := h.Profiles.Me(r.Context(), who)
	if errors.Is(err, domain.ErrNotFound) {
		// no profile yet: report what the auth provider vouches for
		writeJSON(w, http.StatusOK, map[string]any{"identity": who, "profile": nil})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": who, "profile": p})
}

func (h *Handlers) putMe(w http.ResponseWriter, r *http.Request) {
	var in app.ProfileInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Profiles.UpdateMe(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
