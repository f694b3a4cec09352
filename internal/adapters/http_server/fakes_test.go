package httpserver_test

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"talok/internal/domain"
	"talok/internal/wizard"
)

// store is an in-memory implementation of every repository port.
type store struct {
	mu          sync.Mutex
	props       map[uuid.UUID]domain.Property
	leases      map[uuid.UUID]domain.Lease
	invoices    map[uuid.UUID]domain.Invoice
	inspections map[uuid.UUID]domain.Inspection
	profiles    map[uuid.UUID]domain.Profile
}

func newStore() *store {
	return &store{
		props:       map[uuid.UUID]domain.Property{},
		leases:      map[uuid.UUID]domain.Lease{},
		invoices:    map[uuid.UUID]domain.Invoice{},
		inspections: map[uuid.UUID]domain.Inspection{},
		profiles:    map[uuid.UUID]domain.Profile{},
	}
}

func get[T any](s *store, m map[uuid.UUID]T, id uuid.UUID) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, domain.ErrNotFound
	}
	return v, nil
}

func put[T any](s *store, m map[uuid.UUID]T, id uuid.UUID, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m[id] = v
	return nil
}

func (s *store) CreateProperty(_ context.Context, p domain.Property) error {
	return put(s, s.props, p.ID, p)
}
func (s *store) UpdateProperty(_ context.Context, p domain.Property) error {
	return put(s, s.props, p.ID, p)
}
func (s *store) GetProperty(_ context.Context, id uuid.UUID) (domain.Property, error) {
	return get(s, s.props, id)
}
func (s *store) ListProperties(_ context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Property
	for _, p := range s.props {
		if (f.OwnerID == nil || p.OwnerID == *f.OwnerID) && (f.Status == nil || p.Status == *f.Status) {
			out = append(out, p)
		}
	}
	return out, nil
}
func (s *store) DeleteProperty(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.props, id)
	return nil
}

func (s *store) CreateLease(_ context.Context, l domain.Lease) error { return put(s, s.leases, l.ID, l) }
func (s *store) UpdateLease(_ context.Context, l domain.Lease) error { return put(s, s.leases, l.ID, l) }
func (s *store) GetLease(_ context.Context, id uuid.UUID) (domain.Lease, error) {
	return get(s, s.leases, id)
}
func (s *store) ListLeases(_ context.Context, f domain.LeaseFilter) ([]domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Lease
	for _, l := range s.leases {
		if f.OwnerID == nil || l.OwnerID == *f.OwnerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *store) CreateInvoice(_ context.Context, inv domain.Invoice) error {
	return put(s, s.invoices, inv.ID, inv)
}
func (s *store) UpdateInvoice(_ context.Context, inv domain.Invoice) error {
	return put(s, s.invoices, inv.ID, inv)
}
func (s *store) GetInvoice(_ context.Context, id uuid.UUID) (domain.Invoice, error) {
	return get(s, s.invoices, id)
}
func (s *store) FindInvoice(_ context.Context, leaseID uuid.UUID, period string) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range s.invoices {
		if inv.LeaseID == leaseID && inv.Period == period {
			return inv, nil
		}
	}
	return domain.Invoice{}, domain.ErrNotFound
}
func (s *store) ListInvoices(_ context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range s.invoices {
		if f.LeaseID == nil || inv.LeaseID == *f.LeaseID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *store) CreateInspection(_ context.Context, in domain.Inspection) error {
	return put(s, s.inspections, in.ID, in)
}
func (s *store) UpdateInspection(_ context.Context, in domain.Inspection) error {
	return put(s, s.inspections, in.ID, in)
}
func (s *store) GetInspection(_ context.Context, id uuid.UUID) (domain.Inspection, error) {
	return get(s, s.inspections, id)
}
func (s *store) ListInspections(_ context.Context, leaseID uuid.UUID) ([]domain.Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Inspection
	for _, in := range s.inspections {
		if in.LeaseID == leaseID {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *store) UpsertProfile(_ context.Context, p domain.Profile) error {
	return put(s, s.profiles, p.UserID, p)
}
func (s *store) GetProfileByUser(_ context.Context, id uuid.UUID) (domain.Profile, error) {
	return get(s, s.profiles, id)
}

type memCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *memCache) Set(_ context.Context, key string, v any, _ int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	c.m[key] = b
	return err
}
func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
	return nil
}

type memDrafts struct {
	mu      sync.Mutex
	m       map[string]wizard.State
	saveErr error
}

func (d *memDrafts) Save(_ context.Context, st wizard.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.saveErr != nil {
		return d.saveErr
	}
	if d.m == nil {
		d.m = map[string]wizard.State{}
	}
	d.m[st.UserID] = st.Clone()
	return nil
}
func (d *memDrafts) Load(_ context.Context, userID string) (wizard.State, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.m[userID]
	return st.Clone(), ok, nil
}
func (d *memDrafts) Delete(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, userID)
	return nil
}

// tokens maps bearer tokens to identities.
type tokens map[string]domain.Identity

func (t tokens) Verify(_ context.Context, token string) (domain.Identity, error) {
	id, ok := t[token]
	if !ok {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	return id, nil
}

// slowProps blocks every read until the context expires.
type slowProps struct{ *store }

func (slowProps) GetProperty(ctx context.Context, _ uuid.UUID) (domain.Property, error) {
	<-ctx.Done()
	return domain.Property{}, ctx.Err()
}
