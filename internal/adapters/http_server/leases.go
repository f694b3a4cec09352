package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"talok/internal/app"
	"talok/internal/domain"
)

func (h *Handlers) listLeases(w http.ResponseWriter, r *http.Request) {
	limit, _, err := page(r)
	if err != nil {
		writeError(w, err)
		return
	}
	f := domain.LeaseFilter{Limit: limit}
	if f.PropertyID, err = uuidQuery(r, "property_id"); err != nil {
		writeError(w, err)
		return
	}
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.LeaseStatus(s)
		f.Status = &st
	}
	out, err := h.Leases.List(r.Context(), caller(r), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Lease{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createLease(w http.ResponseWriter, r *http.Request) {
	var in app.LeaseInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	l, err := h.Leases.Create(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/api/leases/"+l.ID.String())
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) getLease(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	l, err := h.Leases.Get(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) sendLease(w http.ResponseWriter, r *http.Request) {
	h.leaseAction(w, r, h.Leases.Send)
}

func (h *Handlers) signLease(w http.ResponseWriter, r *http.Request) {
	h.leaseAction(w, r, h.Leases.Sign)
}

func (h *Handlers) terminateLease(w http.ResponseWriter, r *http.Request) {
	var in app.TerminateInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.leaseAction(w, r, func(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Lease, error) {
		return h.Leases.Terminate(ctx, who, id, in)
	})
}

func (h *Handlers) renewLease(w http.ResponseWriter, r *http.Request) {
	var in app.RenewInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	h.leaseAction(w, r, func(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Lease, error) {
		return h.Leases.Renew(ctx, who, id, in)
	})
}

func (h *Handlers) leaseAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, domain.Identity, uuid.UUID) (domain.Lease, error)) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	l, err := fn(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

type generateRequest struct {
	// Period is YYYY-MM; empty means the current month.
	Period string `json:"period"`
}

func (h *Handlers) generateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var in generateRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &in); err != nil {
			writeError(w, err)
			return
		}
	}
	period := time.Now().UTC()
	if in.Period != "" {
		if period, err = time.Parse("2006-01", in.Period); err != nil {
			writeError(w, fmt.Errorf("period must be YYYY-MM: %w", errBadRequest))
			return
		}
	}
	inv, created, err := h.Invoices.Generate(r.Context(), caller(r), id, period)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, inv)
}

func (h *Handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	leaseID, err := uuidQuery(r, "lease_id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.Invoices.List(r.Context(), caller(r), leaseID)
	if err != nil {
		writeError(w, err)
		return
	}
	if out == nil {
		out = []domain.Invoice{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) markInvoicePaid(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	inv, err := h.Invoices.MarkPaid(r.Context(), caller(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *Handlers) ownerDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Dashboard.Owner(r.Context(), caller(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
