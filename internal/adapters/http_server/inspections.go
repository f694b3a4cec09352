package httpserver

import (
	"net/http"

	"talok/internal/app"
	"talok/internal/domain"
)

func (h *Handlers) createInspection(w http.ResponseWriter, r *http.Request) {
	var in app.InspectionInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	insp, err := h.Inspections.Create(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/inspections/"+insp.ID.String())
	writeJSON(w, http.StatusCreated, insp)
}

func (h *Handlers) getInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	insp, err := h.Inspections.Get(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

type furnitureRequest struct {
	Furniture []domain.FurnitureItem `json:"furniture"`
}

func (h *Handlers) updateFurniture(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var in furnitureRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	insp, err := h.Inspections.UpdateFurniture(r.Context(), caller(r), id, in.Furniture)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *Handlers) inspectionCompliance(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := h.Inspections.Compliance(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// inspectionPreview serves the HTML preview; the ETag is the content hash
// so unchanged inspections answer 304.
func (h *Handlers) inspectionPreview(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.Inspections.Preview(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeTagged(w, r, `"`+p.Hash+`"`, "text/html; charset=utf-8", p.HTML)
}

func (h *Handlers) signInspection(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	insp, err := h.Inspections.Sign(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *Handlers) compareInspections(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	cmp, err := h.Inspections.Compare(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
