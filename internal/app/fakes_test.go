package app_test

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"talok/internal/domain"
	"talok/internal/wizard"
)

// ---- fakes ----

// memStore implements every repository port in memory.
type memStore struct {
	mu          sync.Mutex
	props       map[uuid.UUID]domain.Property
	leases      map[uuid.UUID]domain.Lease
	invoices    map[uuid.UUID]domain.Invoice
	inspections map[uuid.UUID]domain.Inspection
	profiles    map[uuid.UUID]domain.Profile
	propGets    int
}

func newMemStore() *memStore {
	return &memStore{
		props:       map[uuid.UUID]domain.Property{},
		leases:      map[uuid.UUID]domain.Lease{},
		invoices:    map[uuid.UUID]domain.Invoice{},
		inspections: map[uuid.UUID]domain.Inspection{},
		profiles:    map[uuid.UUID]domain.Profile{},
	}
}

func (m *memStore) CreateProperty(ctx context.Context, p domain.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.props[p.ID] = p
	return nil
}
func (m *memStore) UpdateProperty(ctx context.Context, p domain.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[p.ID]; !ok {
		return domain.ErrNotFound
	}
	m.props[p.ID] = p
	return nil
}
func (m *memStore) GetProperty(ctx context.Context, id uuid.UUID) (domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.propGets++
	p, ok := m.props[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}
func (m *memStore) ListProperties(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Property
	for _, p := range m.props {
		if f.OwnerID != nil && p.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
func (m *memStore) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.props, id)
	return nil
}

func (m *memStore) CreateLease(ctx context.Context, l domain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[l.ID] = l
	return nil
}
func (m *memStore) UpdateLease(ctx context.Context, l domain.Lease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leases[l.ID] = l
	return nil
}
func (m *memStore) GetLease(ctx context.Context, id uuid.UUID) (domain.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leases[id]
	if !ok {
		return domain.Lease{}, domain.ErrNotFound
	}
	return l, nil
}
func (m *memStore) ListLeases(ctx context.Context, f domain.LeaseFilter) ([]domain.Lease, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Lease
	for _, l := range m.leases {
		if f.OwnerID != nil && l.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && l.Status != *f.Status {
			continue
		}
		if f.TenantID != nil {
			found := false
			for _, t := range l.TenantIDs {
				found = found || t == *f.TenantID
			}
			if !found {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *memStore) CreateInvoice(ctx context.Context, inv domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.invoices {
		if x.LeaseID == inv.LeaseID && x.Period == inv.Period {
			return domain.ErrConflict
		}
	}
	m.invoices[inv.ID] = inv
	return nil
}
func (m *memStore) UpdateInvoice(ctx context.Context, inv domain.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = inv
	return nil
}
func (m *memStore) GetInvoice(ctx context.Context, id uuid.UUID) (domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return domain.Invoice{}, domain.ErrNotFound
	}
	return inv, nil
}
func (m *memStore) FindInvoice(ctx context.Context, leaseID uuid.UUID, period string) (domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.invoices {
		if x.LeaseID == leaseID && x.Period == period {
			return x, nil
		}
	}
	return domain.Invoice{}, domain.ErrNotFound
}
func (m *memStore) ListInvoices(ctx context.Context, f domain.InvoiceFilter) ([]domain.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Invoice
	for _, x := range m.invoices {
		if f.LeaseID != nil && x.LeaseID != *f.LeaseID {
			continue
		}
		if f.OwnerID != nil && x.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != nil && x.Status != *f.Status {
			continue
		}
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

func (m *memStore) CreateInspection(ctx context.Context, in domain.Inspection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inspections[in.ID] = in
	return nil
}
func (m *memStore) UpdateInspection(ctx context.Context, in domain.Inspection) error {
	return m.CreateInspection(ctx, in)
}
func (m *memStore) GetInspection(ctx context.Context, id uuid.UUID) (domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.inspections[id]
	if !ok {
		return domain.Inspection{}, domain.ErrNotFound
	}
	return in, nil
}
func (m *memStore) ListInspections(ctx context.Context, leaseID uuid.UUID) ([]domain.Inspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Inspection
	for _, in := range m.inspections {
		if in.LeaseID == leaseID {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) UpsertProfile(ctx context.Context, p domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.profiles[p.UserID]; ok {
		p.ID, p.CreatedAt = cur.ID, cur.CreatedAt
	}
	m.profiles[p.UserID] = p
	return nil
}
func (m *memStore) GetProfileByUser(ctx context.Context, userID uuid.UUID) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	return p, nil
}

// fakeCache round-trips values through JSON like the redis adapter does.
type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	c.store[key] = b
	return err
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

// fakeDrafts is an in-memory wizard draft store.
type fakeDrafts struct {
	mu sync.Mutex
	m  map[string]wizard.State
}

func (d *fakeDrafts) Save(ctx context.Context, st wizard.State) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.m == nil {
		d.m = map[string]wizard.State{}
	}
	d.m[st.UserID] = st.Clone()
	return nil
}
func (d *fakeDrafts) Load(ctx context.Context, userID string) (wizard.State, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.m[userID]
	return st.Clone(), ok, nil
}
func (d *fakeDrafts) Delete(ctx context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, userID)
	return nil
}

// ---- helpers ----

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func ownerIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Role: domain.RoleOwner, Email: "owner@example.fr"}
}

func tenantIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Role: domain.RoleTenant}
}

var admin = domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}

func mustConfig(t *testing.T) *wizard.Config {
	t.Helper()
	cfg, err := wizard.Default()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	return cfg
}

// completeApartment is a value set that passes the full wizard validation.
func completeApartment() map[string]any {
	return map[string]any{
		"type": "appartement", "address": "12 rue de la Paix", "postal_code": "75002", "city": "Paris",
		"surface": "48,5", "rooms": 2, "floor": 3, "elevator": true,
		"dpe_class": "C", "heating_type": "collectif",
		"furnished": false, "equipment": []any{"cave", "balcon"},
		"rent": 1234.56, "charges": 80, "deposit": 1234.56,
		"description": "Lumineux, proche métro",
	}
}
