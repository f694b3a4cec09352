package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
	"talok/internal/wizard"
)

// PropertyService covers the property lifecycle: wizard drafts, edits,
// submission and admin review. Reads are served cache-aside.
type PropertyService struct {
	base
	repo      domain.PropertyRepository
	cache     domain.Cache
	cacheTTL  time.Duration
	cfg       *wizard.Config
	validator *wizard.Validator
}

func NewPropertyService(r domain.PropertyRepository, c domain.Cache, ttl time.Duration, cfg *wizard.Config, opts ...Option) *PropertyService {
	return &PropertyService{
		base:      newBase(opts),
		repo:      r,
		cache:     c,
		cacheTTL:  ttl,
		cfg:       cfg,
		validator: wizard.NewValidator(cfg),
	}
}

func propertyKey(id uuid.UUID) string { return "property:" + id.String() }

// PropertyInput carries wizard field values keyed by field id.
type PropertyInput struct {
	Values map[string]any `json:"values"`
}

func (s *PropertyService) Create(ctx context.Context, who domain.Identity, in PropertyInput) (domain.Property, error) {
	if who.Role == domain.RoleTenant || who.Role == domain.RoleVendor {
		return domain.Property{}, fmt.Errorf("role %s cannot create properties: %w", who.Role, domain.ErrForbidden)
	}
	values, err := s.coerce(in.Values)
	if err != nil {
		return domain.Property{}, err
	}
	now := s.now()
	p := domain.Property{ID: uuid.New(), OwnerID: who.UserID, Status: domain.PropertyDraft, CreatedAt: now, UpdatedAt: now}
	applyWizardValues(s.cfg, &p, values)
	if !p.Type.Valid() {
		return domain.Property{}, typeError(p.Type)
	}
	ctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.CreateProperty(ctx, p); err != nil {
		return domain.Property{}, err
	}
	log.Info().Str("property", p.ID.String()).Str("type", string(p.Type)).Msg("property created")
	return p, nil
}

func (s *PropertyService) Get(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Property, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	// published listings are visible to everyone signed in
	if p.Status != domain.PropertyPublished && !canAccessOwned(who, p.OwnerID) {
		return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrForbidden)
	}
	return p, nil
}

func (s *PropertyService) load(ctx context.Context, id uuid.UUID) (domain.Property, error) {
	key := propertyKey(id)
	var p domain.Property
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	dctx, cancel := s.db(ctx)
	defer cancel()
	p, err := s.repo.GetProperty(dctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

// List returns the caller's properties; admins may list everything.
func (s *PropertyService) List(ctx context.Context, who domain.Identity, f domain.PropertyFilter) ([]domain.Property, error) {
	if !who.IsAdmin() {
		f.OwnerID = &who.UserID
	}
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.repo.ListProperties(ctx, f)
}

// propertyPage is the largest page the stores serve.
const propertyPage = 500

// ListAll pages through List until a short page.
func (s *PropertyService) ListAll(ctx context.Context, who domain.Identity, f domain.PropertyFilter) ([]domain.Property, error) {
	if !who.IsAdmin() {
		f.OwnerID = &who.UserID
	}
	return allProperties(ctx, func(ctx context.Context, f domain.PropertyFilter) ([]domain.Property, error) {
		ctx, cancel := s.db(ctx)
		defer cancel()
		return s.repo.ListProperties(ctx, f)
	}, f)
}

func allProperties(ctx context.Context, list func(context.Context, domain.PropertyFilter) ([]domain.Property, error), f domain.PropertyFilter) ([]domain.Property, error) {
	var out []domain.Property
	f.Limit, f.Offset = propertyPage, 0
	for {
		page, err := list(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < propertyPage {
			return out, nil
		}
		f.Offset += len(page)
	}
}

// Update merges field values into a draft or rejected property. Editing a
// rejected property puts it back to draft.
func (s *PropertyService) Update(ctx context.Context, who domain.Identity, id uuid.UUID, in PropertyInput) (domain.Property, error) {
	p, err := s.owned(ctx, who, id)
	if err != nil {
		return domain.Property{}, err
	}
	if p.Status != domain.PropertyDraft && p.Status != domain.PropertyRejected {
		return domain.Property{}, fmt.Errorf("property %s is %s: %w", id, p.Status, domain.ErrInvalidTransition)
	}
	values := wizardValues(s.cfg, p)
	patch, err := s.coerce(in.Values)
	if err != nil {
		return domain.Property{}, err
	}
	for k, v := range patch {
		if v == nil {
			delete(values, k)
			continue
		}
		values[k] = v
	}
	now := s.now()
	applyWizardValues(s.cfg, &p, values)
	if !p.Type.Valid() {
		return domain.Property{}, typeError(p.Type)
	}
	if p.Status == domain.PropertyRejected {
		if err := p.Transition(domain.PropertyDraft, now); err != nil {
			return domain.Property{}, err
		}
		p.RejectReason = nil
	}
	p.UpdatedAt = now
	return p, s.save(ctx, p)
}

func (s *PropertyService) Delete(ctx context.Context, who domain.Identity, id uuid.UUID) error {
	p, err := s.owned(ctx, who, id)
	if err != nil {
		return err
	}
	if p.Status != domain.PropertyDraft && p.Status != domain.PropertyRejected && !who.IsAdmin() {
		return fmt.Errorf("property %s is %s: %w", id, p.Status, domain.ErrInvalidTransition)
	}
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.DeleteProperty(dctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

// Submit runs the full wizard validation and moves the draft to pending review.
func (s *PropertyService) Submit(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Property, error) {
	p, err := s.owned(ctx, who, id)
	if err != nil {
		return domain.Property{}, err
	}
	if errs := s.validator.ValidateAll(wizardValues(s.cfg, p)); !errs.Empty() {
		return domain.Property{}, errs
	}
	if err := p.Transition(domain.PropertyPending, s.now()); err != nil {
		return domain.Property{}, err
	}
	if err := s.save(ctx, p); err != nil {
		return domain.Property{}, err
	}
	log.Info().Str("property", id.String()).Msg("property submitted for review")
	return p, nil
}

// ReviewInput is the admin decision on a pending property.
type ReviewInput struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

func (s *PropertyService) Review(ctx context.Context, who domain.Identity, id uuid.UUID, in ReviewInput) (domain.Property, error) {
	if !who.IsAdmin() {
		return domain.Property{}, fmt.Errorf("review requires admin: %w", domain.ErrForbidden)
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	to := domain.PropertyPublished
	if !in.Approve {
		to = domain.PropertyRejected
		if strings.TrimSpace(in.Reason) == "" {
			v := domain.NewValidationError()
			v.Add("reason", "a reason is required to reject a property")
			return domain.Property{}, v
		}
	}
	if err := p.Transition(to, s.now()); err != nil {
		return domain.Property{}, err
	}
	p.RejectReason = nil
	if !in.Approve {
		r := strings.TrimSpace(in.Reason)
		p.RejectReason = &r
	}
	if err := s.save(ctx, p); err != nil {
		return domain.Property{}, err
	}
	log.Info().Str("property", id.String()).Str("status", string(p.Status)).Str("admin", who.UserID.String()).Msg("property reviewed")
	return p, nil
}

// SaveDraft persists a wizard state, creating the draft property on the first
// save. It is the auto-save target of the wizard.
func (s *PropertyService) SaveDraft(ctx context.Context, st wizard.State) (wizard.State, error) {
	owner, err := uuid.Parse(st.UserID)
	if err != nil {
		return st, fmt.Errorf("wizard user %q: %w", st.UserID, domain.ErrValidation)
	}
	now := s.now()
	var p domain.Property
	if st.PropertyID != "" {
		id, err := uuid.Parse(st.PropertyID)
		if err != nil {
			return st, fmt.Errorf("wizard property %q: %w", st.PropertyID, domain.ErrValidation)
		}
		dctx, cancel := s.db(ctx)
		p, err = s.repo.GetProperty(dctx, id)
		cancel()
		if err != nil {
			return st, err
		}
		if p.OwnerID != owner {
			return st, fmt.Errorf("property %s: %w", id, domain.ErrForbidden)
		}
		if p.Status != domain.PropertyDraft {
			return st, fmt.Errorf("property %s is %s: %w", id, p.Status, domain.ErrInvalidTransition)
		}
		applyWizardValues(s.cfg, &p, st.Values)
		p.UpdatedAt = now
		return st, s.save(ctx, p)
	}

	// a draft needs at least a known type
	if !domain.PropertyType(typeOf(st.Values)).Valid() {
		return st, nil
	}
	p = domain.Property{ID: uuid.New(), OwnerID: owner, Status: domain.PropertyDraft, CreatedAt: now, UpdatedAt: now}
	applyWizardValues(s.cfg, &p, st.Values)
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.CreateProperty(dctx, p); err != nil {
		return st, err
	}
	st.PropertyID = p.ID.String()
	log.Info().Str("property", st.PropertyID).Str("session", st.Key()).Msg("wizard draft created")
	return st, nil
}

// SubmitDraft saves the final wizard state and moves the draft to pending.
func (s *PropertyService) SubmitDraft(ctx context.Context, st wizard.State) (wizard.State, error) {
	st, err := s.SaveDraft(ctx, st)
	if err != nil {
		return st, err
	}
	if st.PropertyID == "" {
		return st, fmt.Errorf("wizard has no draft to submit: %w", domain.ErrValidation)
	}
	owner, _ := uuid.Parse(st.UserID)
	id, _ := uuid.Parse(st.PropertyID)
	_, err = s.Submit(ctx, domain.Identity{UserID: owner, Role: domain.RoleOwner}, id)
	return st, err
}

// ValuesOf returns the wizard values of a property the caller may edit.
func (s *PropertyService) ValuesOf(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Property, map[string]any, error) {
	p, err := s.owned(ctx, who, id)
	if err != nil {
		return domain.Property{}, nil, err
	}
	return p, wizardValues(s.cfg, p), nil
}

func (s *PropertyService) owned(ctx context.Context, who domain.Identity, id uuid.UUID) (domain.Property, error) {
	dctx, cancel := s.db(ctx)
	defer cancel()
	p, err := s.repo.GetProperty(dctx, id)
	if err != nil {
		return domain.Property{}, err
	}
	if !canAccessOwned(who, p.OwnerID) {
		return domain.Property{}, fmt.Errorf("property %s: %w", id, domain.ErrForbidden)
	}
	return p, nil
}

func (s *PropertyService) save(ctx context.Context, p domain.Property) error {
	dctx, cancel := s.db(ctx)
	defer cancel()
	if err := s.repo.UpdateProperty(dctx, p); err != nil {
		return err
	}
	s.evict(ctx, p.ID)
	return nil
}

func (s *PropertyService) evict(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, propertyKey(id)); err != nil {
		log.Warn().Err(err).Str("property", id.String()).Msg("property cache eviction failed")
	}
}

// coerce converts raw API input through the wizard field descriptors.
func (s *PropertyService) coerce(raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		f, ok := s.cfg.Field(k)
		if !ok {
			return nil, fmt.Errorf("%w %q", wizard.ErrUnknownKey, k)
		}
		out[k] = wizard.Coerce(f, v)
	}
	return out, nil
}

func typeError(t domain.PropertyType) error {
	v := domain.NewValidationError()
	if t == "" {
		v.Add("type", "Ce champ est obligatoire")
	} else {
		v.Add("type", fmt.Sprintf("type de bien inconnu %q", t))
	}
	return v
}

func typeOf(values map[string]any) string {
	s, _ := values[wizard.TypeField].(string)
	return s
}
