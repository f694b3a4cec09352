package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talok/internal/domain"
	"talok/internal/wizard"
)

type fakeDrafts struct {
	mu    sync.Mutex
	saves []wizard.State
	fail  error
}

func (f *fakeDrafts) save(_ context.Context, st wizard.State) (wizard.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return st, f.fail
	}
	if st.PropertyID == "" {
		st.PropertyID = "prop-1"
	}
	f.saves = append(f.saves, st.Clone())
	return st, nil
}

func (f *fakeDrafts) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeDrafts) last() wizard.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

func newState() wizard.State {
	return wizard.State{UserID: "user-1", SessionID: "sess-1"}
}

func fixedClock() domain.Clock {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func TestSession_UpdateCoercesAndPrunes(t *testing.T) {
	cfg := mustDefault(t)
	s := wizard.NewSession(cfg, nil, newState(), wizard.WithClock(fixedClock()))

	_, err := s.Update(map[string]any{"type": "parking", "parking_kind": "box", "box_dimensions": "2,5 x 5 m"})
	require.NoError(t, err)
	assert.Equal(t, "2,5 x 5 m", s.State().Values["box_dimensions"])

	_, err = s.Update(map[string]any{"parking_kind": "exterieur"})
	require.NoError(t, err)
	_, still := s.State().Values["box_dimensions"]
	assert.False(t, still, "hidden field value should be dropped")

	// switching type drops fields that only exist for the previous type
	_, err = s.Update(map[string]any{"type": "maison", "surface": "120"})
	require.NoError(t, err)
	st := s.State()
	assert.Equal(t, 120.0, st.Values["surface"])
	assert.NotContains(t, st.Values, "parking_kind")
	assert.Equal(t, int64(3), st.Revision)
	assert.Equal(t, fixedClock()(), st.UpdatedAt)
}

func TestSession_UpdateRejectsUnknownField(t *testing.T) {
	cfg := mustDefault(t)
	s := wizard.NewSession(cfg, nil, newState())
	_, err := s.Update(map[string]any{"swimming_pool": true})
	assert.ErrorIs(t, err, wizard.ErrUnknownKey)
}

func TestSession_LiveErrorsOnlyForFilledFields(t *testing.T) {
	cfg := mustDefault(t)
	s := wizard.NewSession(cfg, nil, newState())
	errs, err := s.Update(map[string]any{"type": "maison", "postal_code": "123"})
	require.NoError(t, err)
	assert.Contains(t, errs.Fields, "postal_code")
	assert.NotContains(t, errs.Fields, "address")
}

func TestSession_AutosaveDebounceKeepsLatest(t *testing.T) {
	cfg := mustDefault(t)
	drafts := &fakeDrafts{}
	saved := make(chan wizard.State, 4)
	a := wizard.NewAutosaver(30*time.Millisecond, drafts.save,
		wizard.WithOnSaved(func(st wizard.State, err error) {
			if err == nil {
				saved <- st
			}
		}))
	defer a.Stop()
	s := wizard.NewSession(cfg, nil, newState(), wizard.WithAutosaver(a))

	for _, city := range []string{"Lille", "Lyon", "Nantes"} {
		_, err := s.Update(map[string]any{"type": "maison", "city": city})
		require.NoError(t, err)
	}

	select {
	case st := <-saved:
		assert.Equal(t, "Nantes", st.Values["city"])
		assert.Equal(t, "prop-1", st.PropertyID)
	case <-time.After(2 * time.Second):
		t.Fatal("autosave never fired")
	}
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, drafts.count())
	assert.Equal(t, "prop-1", a.PropertyID(s.State().Key()))
}

func TestSession_NextValidatesAndAdvances(t *testing.T) {
	cfg := mustDefault(t)
	drafts := &fakeDrafts{}
	a := wizard.NewAutosaver(time.Hour, drafts.save)
	defer a.Stop()
	s := wizard.NewSession(cfg, nil, newState(), wizard.WithAutosaver(a))

	_, err := s.Update(map[string]any{"type": "parking"})
	require.NoError(t, err)

	view, err := s.Next(context.Background())
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "address")
	assert.Equal(t, "type_adresse", view.ID)
	assert.NotEmpty(t, view.Errors)
	assert.Equal(t, 0, drafts.count(), "invalid step must not be flushed")

	_, err = s.Update(map[string]any{"address": "3 allée des Tilleuls", "postal_code": "69003", "city": "Lyon"})
	require.NoError(t, err)
	view, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "caracteristiques", view.ID)
	assert.Equal(t, 1, drafts.count())
	assert.Equal(t, "prop-1", s.State().PropertyID)

	_, err = s.Update(map[string]any{"parking_kind": "souterrain"})
	require.NoError(t, err)
	view, err = s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "conditions", view.ID, "parking skips the equipment step")
	assert.Equal(t, "prop-1", drafts.last().PropertyID)

	view, err = s.Previous()
	require.NoError(t, err)
	assert.Equal(t, "caracteristiques", view.ID)
	_, _ = s.Previous()
	_, err = s.Previous()
	assert.ErrorIs(t, err, wizard.ErrFirstStep)
}

func TestSession_Submit(t *testing.T) {
	cfg := mustDefault(t)
	drafts := &fakeDrafts{}
	a := wizard.NewAutosaver(time.Hour, drafts.save)
	defer a.Stop()

	var submitted []wizard.State
	submit := func(_ context.Context, st wizard.State) (wizard.State, error) {
		submitted = append(submitted, st)
		return st, nil
	}
	s := wizard.NewSession(cfg, nil, newState(), wizard.WithAutosaver(a), wizard.WithSubmit(submit))

	_, err := s.Update(map[string]any{
		"type": "parking", "address": "3 allée des Tilleuls", "postal_code": "69003",
		"city": "Lyon", "parking_kind": "exterieur",
	})
	require.NoError(t, err)

	err = s.Submit(context.Background())
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "rent")
	assert.Equal(t, stepConditions, s.State().Step, "cursor jumps to the first step with errors")
	assert.Empty(t, submitted)

	_, err = s.Update(map[string]any{"rent": 95})
	require.NoError(t, err)
	require.NoError(t, s.Submit(context.Background()))
	require.Len(t, submitted, 1)
	assert.Equal(t, "prop-1", submitted[0].PropertyID)
	assert.True(t, s.State().Submitted)

	assert.ErrorIs(t, s.Submit(context.Background()), wizard.ErrSubmitted)
	_, err = s.Update(map[string]any{"rent": 100})
	assert.ErrorIs(t, err, wizard.ErrSubmitted)
}

func TestSession_SubmitWithoutHandler(t *testing.T) {
	cfg := mustDefault(t)
	s := wizard.NewSession(cfg, nil, newState())
	_, err := s.Update(map[string]any{
		"type": "parking", "address": "3 allée des Tilleuls", "postal_code": "69003",
		"city": "Lyon", "parking_kind": "exterieur", "rent": 80,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Submit(context.Background()), wizard.ErrNoSubmit)
}
