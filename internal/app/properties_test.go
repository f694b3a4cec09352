package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"talok/internal/app"
	"talok/internal/domain"
	"talok/internal/wizard"
)

func newPropertyService(t *testing.T) (*app.PropertyService, *memStore, *fakeCache) {
	t.Helper()
	repo := newMemStore()
	cache := &fakeCache{}
	svc := app.NewPropertyService(repo, cache, 10*time.Minute, mustConfig(t), app.WithClock(fixedClock))
	return svc, repo, cache
}

func TestPropertyCreate_MapsWizardValues(t *testing.T) {
	svc, repo, _ := newPropertyService(t)
	owner := ownerIdentity()

	p, err := svc.Create(context.Background(), owner, app.PropertyInput{Values: completeApartment()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Status != domain.PropertyDraft || p.OwnerID != owner.UserID || p.Type != domain.TypeAppartement {
		t.Fatalf("unexpected property: %+v", p)
	}
	if p.Title != "appartement - Paris" {
		t.Fatalf("default title = %q", p.Title)
	}
	if p.Surface == nil || *p.Surface != 48.5 || p.Rooms == nil || *p.Rooms != 2 {
		t.Fatalf("surface/rooms not mapped: %+v", p)
	}
	if p.RentCents != 123456 || p.ChargesCents != 8000 || p.DepositCents != 123456 {
		t.Fatalf("amounts not in cents: %d %d %d", p.RentCents, p.ChargesCents, p.DepositCents)
	}
	if p.ColumnValues["floor"] != int64(3) || p.ColumnValues["dpe_class"] != "C" || p.ColumnValues["elevator"] != true {
		t.Fatalf("column values = %v", p.ColumnValues)
	}
	if p.Extras["description"] != "Lumineux, proche métro" {
		t.Fatalf("extras = %v", p.Extras)
	}
	if _, ok := p.Extras["floor"]; ok {
		t.Fatalf("column-backed field leaked into extras")
	}
	if _, ok := repo.props[p.ID]; !ok {
		t.Fatalf("property not stored")
	}
}

func TestPropertyCreate_RejectsTenantsAndUnknownFields(t *testing.T) {
	svc, _, _ := newPropertyService(t)
	if _, err := svc.Create(context.Background(), tenantIdentity(), app.PropertyInput{Values: completeApartment()}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	_, err := svc.Create(context.Background(), ownerIdentity(), app.PropertyInput{Values: map[string]any{"type": "maison", "pool": true}})
	if !errors.Is(err, wizard.ErrUnknownKey) {
		t.Fatalf("expected unknown key, got %v", err)
	}
	_, err = svc.Create(context.Background(), ownerIdentity(), app.PropertyInput{Values: map[string]any{"city": "Lyon"}})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Fields["type"] == nil {
		t.Fatalf("expected type validation error, got %v", err)
	}
}

func TestPropertyGet_CacheMissThenHit(t *testing.T) {
	svc, repo, _ := newPropertyService(t)
	owner := ownerIdentity()
	ctx := context.Background()
	p, err := svc.Create(ctx, owner, app.PropertyInput{Values: completeApartment()})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, owner, p.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	// mutate the repo behind the cache's back
	stored := repo.props[p.ID]
	stored.Title = "SHOULD NOT SEE THIS"
	repo.props[p.ID] = stored

	got, err := svc.Get(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "appartement - Paris" {
		t.Fatalf("expected cached title, got %q", got.Title)
	}
	if repo.propGets != 1 {
		t.Fatalf("expected one repository read, got %d", repo.propGets)
	}

	if _, err := svc.Get(ctx, ownerIdentity(), p.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other owner should be forbidden on a draft, got %v", err)
	}
	if _, err := svc.Get(ctx, owner, uuid.New()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPropertySubmitAndReview(t *testing.T) {
	svc, _, _ := newPropertyService(t)
	owner := ownerIdentity()
	ctx := context.Background()

	values := completeApartment()
	delete(values, "dpe_class")
	p, err := svc.Create(ctx, owner, app.PropertyInput{Values: values})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Submit(ctx, owner, p.ID)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields["dpe_class"]) == 0 {
		t.Fatalf("expected dpe_class required, got %v", err)
	}

	if _, err := svc.Update(ctx, owner, p.ID, app.PropertyInput{Values: map[string]any{"dpe_class": "D"}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, err = svc.Submit(ctx, owner, p.ID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.Status != domain.PropertyPending {
		t.Fatalf("status = %s", p.Status)
	}
	if _, err := svc.Update(ctx, owner, p.ID, app.PropertyInput{Values: map[string]any{"city": "Lyon"}}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("pending properties are not editable, got %v", err)
	}

	if _, err := svc.Review(ctx, owner, p.ID, app.ReviewInput{Approve: true}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("owner cannot review, got %v", err)
	}
	if _, err := svc.Review(ctx, admin, p.ID, app.ReviewInput{}); !errors.As(err, &verr) {
		t.Fatalf("rejection needs a reason, got %v", err)
	}
	p, err = svc.Review(ctx, admin, p.ID, app.ReviewInput{Reason: "Photos manquantes"})
	if err != nil || p.Status != domain.PropertyRejected || p.RejectReason == nil {
		t.Fatalf("reject: %+v %v", p, err)
	}

	// editing a rejected property sends it back to draft
	p, err = svc.Update(ctx, owner, p.ID, app.PropertyInput{Values: map[string]any{"description": "Avec photos"}})
	if err != nil || p.Status != domain.PropertyDraft || p.RejectReason != nil {
		t.Fatalf("edit rejected: %+v %v", p, err)
	}
	if _, err := svc.Submit(ctx, owner, p.ID); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	p, err = svc.Review(ctx, admin, p.ID, app.ReviewInput{Approve: true})
	if err != nil || p.Status != domain.PropertyPublished {
		t.Fatalf("publish: %+v %v", p, err)
	}

	// published listings are readable by any signed-in user
	if _, err := svc.Get(ctx, tenantIdentity(), p.ID); err != nil {
		t.Fatalf("published get: %v", err)
	}
}

func TestPropertyList_ScopesToOwner(t *testing.T) {
	svc, _, _ := newPropertyService(t)
	ctx := context.Background()
	a, b := ownerIdentity(), ownerIdentity()
	for _, who := range []domain.Identity{a, a, b} {
		if _, err := svc.Create(ctx, who, app.PropertyInput{Values: completeApartment()}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := svc.List(ctx, a, domain.PropertyFilter{OwnerID: &b.UserID})
	if err != nil || len(list) != 2 {
		t.Fatalf("owner list: %d %v", len(list), err)
	}
	all, _ := svc.List(ctx, admin, domain.PropertyFilter{})
	if len(all) != 3 {
		t.Fatalf("admin list = %d", len(all))
	}
}

func TestSaveDraft_CreatesThenUpdates(t *testing.T) {
	svc, repo, _ := newPropertyService(t)
	ctx := context.Background()
	owner := ownerIdentity()

	st := wizard.State{UserID: owner.UserID.String(), SessionID: "s1", Values: map[string]any{"city": "Nantes"}}
	st, err := svc.SaveDraft(ctx, st)
	if err != nil || st.PropertyID != "" {
		t.Fatalf("no draft without a type: %q %v", st.PropertyID, err)
	}

	st.Values["type"] = "parking"
	st, err = svc.SaveDraft(ctx, st)
	if err != nil || st.PropertyID == "" {
		t.Fatalf("draft not created: %v", err)
	}
	st.Values["parking_kind"] = "box"
	if _, err := svc.SaveDraft(ctx, st); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if len(repo.props) != 1 {
		t.Fatalf("expected a single draft, got %d", len(repo.props))
	}
	p := repo.props[uuid.MustParse(st.PropertyID)]
	if p.Type != domain.TypeParking || p.Extras["parking_kind"] != "box" {
		t.Fatalf("draft not updated: %+v", p)
	}

	st.UserID = uuid.NewString()
	if _, err := svc.SaveDraft(ctx, st); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("foreign draft should be forbidden, got %v", err)
	}
}
