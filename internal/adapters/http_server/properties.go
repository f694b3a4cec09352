package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"talok/internal/app"
	"talok/internal/domain"
)

func propertyFilter(r *http.Request) (domain.PropertyFilter, error) {
	limit, offset, err := page(r)
	if err != nil {
		return domain.PropertyFilter{}, err
	}
	f := domain.PropertyFilter{Limit: limit, Offset: offset}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.PropertyStatus(s)
		f.Status = &st
	}
	if t := r.URL.Query().Get("type"); t != "" {
		pt := domain.PropertyType(t)
		if !pt.Valid() {
			return f, fmt.Errorf("unknown property type %q: %w", t, errBadRequest)
		}
		f.Type = &pt
	}
	return f, nil
}

func (h *Handlers) listProperties(w http.ResponseWriter, r *http.Request) {
	f, err := propertyFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Properties.List(r.Context(), caller(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Property{}
	}
	writeJSON(w, http.StatusOK, out)
}

// listReviewQueue lists pending properties for admins unless another status is asked for.
func (h *Handlers) listReviewQueue(w http.ResponseWriter, r *http.Request) {
	f, err := propertyFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if f.Status == nil {
		pending := domain.PropertyPending
		f.Status = &pending
	}
	out, err := h.Properties.List(r.Context(), caller(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Property{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createProperty(w http.ResponseWriter, r *http.Request) {
	var in app.PropertyInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Properties.Create(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/properties/"+p.ID.String())
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handlers) getProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Properties.Get(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	etag, body := calcETagAndBody(p)
	if body == nil {
		writeError(w, errors.New("encode property"))
		return
	}
	writeTagged(w, r, etag, "application/json", body)
}

func (h *Handlers) updateProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var in app.PropertyInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Properties.Update(r.Context(), caller(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) deleteProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.Properties.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) submitProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Properties.Submit(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) reviewProperty(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var in app.ReviewInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Properties.Review(r.Context(), caller(r), id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
