package app

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"talok/internal/domain"
)

type ProfileService struct {
	base
	repo domain.ProfileRepository
}

func NewProfileService(r domain.ProfileRepository, opts ...Option) *ProfileService {
	return &ProfileService{base: newBase(opts), repo: r}
}

// Resolve lets the stored profile role override the role claimed by the
// auth provider. Without a profile the identity is returned unchanged.
func (s *ProfileService) Resolve(ctx context.Context, id domain.Identity) (domain.Identity, error) {
	dctx, cancel := s.db(ctx)
	defer cancel()
	p, err := s.repo.GetProfileByUser(dctx, id.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return id, nil
	}
	if err != nil {
		return id, err
	}
	id.Role = p.Role
	return id, nil
}

func (s *ProfileService) Me(ctx context.Context, who domain.Identity) (domain.Profile, error) {
	ctx, cancel := s.db(ctx)
	defer cancel()
	return s.repo.GetProfileByUser(ctx, who.UserID)
}

type ProfileInput struct {
	Role      domain.Role `json:"role"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     *string     `json:"phone,omitempty"`
	Company   *string     `json:"company,omitempty"`
}

// UpdateMe creates or updates the caller's profile. Users pick owner, tenant
// or vendor; only an admin keeps the admin role.
func (s *ProfileService) UpdateMe(ctx context.Context, who domain.Identity, in ProfileInput) (domain.Profile, error) {
	v := domain.NewValidationError()
	switch in.Role {
	case domain.RoleOwner, domain.RoleTenant, domain.RoleVendor:
	case domain.RoleAdmin:
		if !who.IsAdmin() {
			v.Add("role", "rôle non autorisé")
		}
	case "":
		in.Role = who.Role
	default:
		v.Add("role", "rôle inconnu")
	}
	if strings.TrimSpace(in.FirstName) == "" {
		v.Add("first_name", "Ce champ est obligatoire")
	}
	if err := v.OrNil(); err != nil {
		return domain.Profile{}, err
	}
	p := domain.Profile{
		ID:        uuid.New(),
		UserID:    who.UserID,
		Role:      in.Role,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     who.Email,
		Phone:     in.Phone,
		Company:   in.Company,
		CreatedAt: s.now(),
	}
	dctx, cancel := s.db(ctx)
	err := s.repo.UpsertProfile(dctx, p)
	cancel()
	if err != nil {
		return domain.Profile{}, err
	}
	return s.Me(ctx, who)
}
