package httpserver

import (
	"errors"
	"net/http"

	"talok/internal/app"
	"talok/internal/domain"
)

func (h *Handlers) wizardConfig(w http.ResponseWriter, r *http.Request) {
	etag, body := calcETagAndBody(h.Wizard.Config())
	if body == nil {
		writeError(w, errors.New("encode wizard config"))
		return
	}
	writeTagged(w, r, etag, "application/json", body)
}

func (h *Handlers) startWizard(w http.ResponseWriter, r *http.Request) {
	var in app.StartInput
	if r.ContentLength != 0 {
		if err := decode(w, r, &in); err != nil {
			writeError(w, err)
			return
		}
	}
	v, err := h.Wizard.Start(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handlers) currentWizard(w http.ResponseWriter, r *http.Request) {
	v, err := h.Wizard.Current(r.Context(), caller(r))
	writeWizard(w, v, err)
}

// updateWizard merges a JSON object of field values; live errors come back
// in the view with 200.
func (h *Handlers) updateWizard(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decode(w, r, &raw); err != nil {
		writeError(w, err)
		return
	}
	v, err := h.Wizard.Update(r.Context(), caller(r), raw)
	writeWizard(w, v, err)
}

func (h *Handlers) nextWizard(w http.ResponseWriter, r *http.Request) {
	v, err := h.Wizard.Next(r.Context(), caller(r))
	writeWizard(w, v, err)
}

func (h *Handlers) previousWizard(w http.ResponseWriter, r *http.Request) {
	v, err := h.Wizard.Previous(r.Context(), caller(r))
	writeWizard(w, v, err)
}

func (h *Handlers) submitWizard(w http.ResponseWriter, r *http.Request) {
	v, err := h.Wizard.Submit(r.Context(), caller(r))
	writeWizard(w, v, err)
}

func (h *Handlers) discardWizard(w http.ResponseWriter, r *http.Request) {
	if err := h.Wizard.Discard(r.Context(), caller(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// wizardStepHTML renders the current step as an HTML fragment.
func (h *Handlers) wizardStepHTML(w http.ResponseWriter, r *http.Request) {
	v, err := h.Wizard.Current(r.Context(), caller(r))
	if err != nil {
		writeError(w, err)
		return
	}
	frag, err := v.Step.HTML()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(frag))
}

// writeWizard returns the view; a failed step validation still carries the
// re-rendered step as details.
func writeWizard(w http.ResponseWriter, v app.WizardView, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeErrorDetails(w, err, v)
		return
	}
	writeError(w, err)
}
