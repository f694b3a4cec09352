package app_test

import (
	"context"
	"errors"
	"testing"

	"talok/internal/app"
	"talok/internal/domain"
)

func TestProfile_ResolveOverridesRole(t *testing.T) {
	repo := newMemStore()
	svc := app.NewProfileService(repo, app.WithClock(fixedClock))
	ctx := context.Background()
	who := domain.Identity{UserID: ownerIdentity().UserID, Role: domain.RoleTenant, Email: "x@example.fr"}

	got, err := svc.Resolve(ctx, who)
	if err != nil || got.Role != domain.RoleTenant {
		t.Fatalf("without a profile the claimed role stays: %+v %v", got, err)
	}
	if _, err := svc.UpdateMe(ctx, who, app.ProfileInput{Role: domain.RoleOwner, FirstName: " Camille "}); err != nil {
		t.Fatal(err)
	}
	got, err = svc.Resolve(ctx, who)
	if err != nil || got.Role != domain.RoleOwner {
		t.Fatalf("profile role should win: %+v %v", got, err)
	}
}

func TestProfile_UpdateMe(t *testing.T) {
	repo := newMemStore()
	svc := app.NewProfileService(repo, app.WithClock(fixedClock))
	ctx := context.Background()
	who := ownerIdentity()

	if _, err := svc.Me(ctx, who); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("no profile yet: got %v", err)
	}

	_, err := svc.UpdateMe(ctx, who, app.ProfileInput{Role: domain.RoleAdmin})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["role"] == nil || verr.Fields["first_name"] == nil {
		t.Fatalf("expected role and first_name errors, got %v", err)
	}

	company := "SCI Les Tilleuls"
	p, err := svc.UpdateMe(ctx, who, app.ProfileInput{FirstName: "Camille", LastName: "Martin", Company: &company})
	if err != nil {
		t.Fatal(err)
	}
	if p.Role != domain.RoleOwner || p.Email != who.Email || *p.Company != company {
		t.Fatalf("unexpected profile: %+v", p)
	}
	again, err := svc.UpdateMe(ctx, who, app.ProfileInput{FirstName: "Camille", Role: domain.RoleVendor})
	if err != nil || again.ID != p.ID || again.Role != domain.RoleVendor {
		t.Fatalf("upsert should keep the id: %+v %v", again, err)
	}

	if _, err := svc.UpdateMe(ctx, admin, app.ProfileInput{FirstName: "Root", Role: domain.RoleAdmin}); err != nil {
		t.Fatalf("admin keeps admin: %v", err)
	}
}
