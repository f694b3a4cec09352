package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"talok/internal/domain"
	"talok/internal/wizard"
)

// DraftStore persists the in-progress wizard state of each user.
type DraftStore interface {
	Save(ctx context.Context, st wizard.State) error
	Load(ctx context.Context, userID string) (wizard.State, bool, error)
	Delete(ctx context.Context, userID string) error
}

// WizardView is what the wizard endpoints return: the state, the rendered
// current step and the live errors of that step.
type WizardView struct {
	State  wizard.State        `json:"state"`
	Step   wizard.StepView     `json:"step"`
	Errors map[string][]string `json:"errors,omitempty"`
}

// WizardService runs wizard sessions. Each request rebuilds a wizard.Session
// from the stored state; draft writes go through one shared Autosaver.
type WizardService struct {
	base
	cfg       *wizard.Config
	validator *wizard.Validator
	store     DraftStore
	props     *PropertyService
	autosaver *wizard.Autosaver
}

// NewWizardService wires the auto-saver to the property drafts. onSaved, when
// set, observes every background save.
func NewWizardService(cfg *wizard.Config, store DraftStore, props *PropertyService, debounce time.Duration, onSaved func(wizard.State, error), opts ...Option) *WizardService {
	s := &WizardService{
		base:      newBase(opts),
		cfg:       cfg,
		validator: wizard.NewValidator(cfg),
		store:     store,
		props:     props,
	}
	aopts := []wizard.AutosaveOption{wizard.WithSaveTimeout(s.timeout)}
	if onSaved != nil {
		aopts = append(aopts, wizard.WithOnSaved(onSaved))
	}
	s.autosaver = wizard.NewAutosaver(debounce, s.autosave, aopts...)
	return s
}

func (s *WizardService) Config() *wizard.Config { return s.cfg }

// Stop cancels pending auto-saves.
func (s *WizardService) Stop() { s.autosaver.Stop() }

func (s *WizardService) autosave(ctx context.Context, st wizard.State) (wizard.State, error) {
	saved, err := s.props.SaveDraft(ctx, st)
	if err != nil {
		return saved, err
	}
	if st.PropertyID == "" && saved.PropertyID != "" {
		s.attach(ctx, saved)
	}
	return saved, nil
}

// attach records a newly created draft id on the stored state of the same session.
func (s *WizardService) attach(ctx context.Context, saved wizard.State) {
	cur, ok, err := s.store.Load(ctx, saved.UserID)
	if err != nil || !ok || cur.SessionID != saved.SessionID || cur.PropertyID != "" {
		return
	}
	cur.PropertyID = saved.PropertyID
	if err := s.store.Save(ctx, cur); err != nil {
		log.Debug().Err(err).Str("session", cur.Key()).Msg("attach draft id skipped")
	}
}

// StartInput opens a new session, either blank (optionally with a type) or
// resuming an existing draft property.
type StartInput struct {
	Type       string     `json:"type,omitempty"`
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
}

func (s *WizardService) Start(ctx context.Context, who domain.Identity, in StartInput) (WizardView, error) {
	if who.Role == domain.RoleTenant || who.Role == domain.RoleVendor {
		return WizardView{}, fmt.Errorf("role %s cannot create properties: %w", who.Role, domain.ErrForbidden)
	}
	if prev, ok, err := s.store.Load(ctx, who.UserID.String()); err != nil {
		return WizardView{}, err
	} else if ok {
		s.autosaver.Forget(prev.Key())
	}

	st := wizard.State{
		UserID:    who.UserID.String(),
		SessionID: uuid.NewString(),
		Values:    map[string]any{},
		UpdatedAt: s.now(),
	}
	if in.PropertyID != nil {
		p, values, err := s.props.ValuesOf(ctx, who, *in.PropertyID)
		if err != nil {
			return WizardView{}, err
		}
		if p.Status != domain.PropertyDraft {
			return WizardView{}, fmt.Errorf("property %s is %s: %w", p.ID, p.Status, domain.ErrInvalidTransition)
		}
		st.Values = values
		st.PropertyID = p.ID.String()
	} else if in.Type != "" {
		if !s.cfg.HasType(in.Type) {
			return WizardView{}, typeError(domain.PropertyType(in.Type))
		}
		st.Values[wizard.TypeField] = in.Type
	}

	sess := s.session(st)
	if err := s.store.Save(ctx, sess.State()); err != nil {
		return WizardView{}, err
	}
	log.Info().Str("session", st.Key()).Str("property", st.PropertyID).Msg("wizard session started")
	return s.view(sess, nil), nil
}

func (s *WizardService) Current(ctx context.Context, who domain.Identity) (WizardView, error) {
	sess, err := s.load(ctx, who)
	if err != nil {
		return WizardView{}, err
	}
	return s.view(sess, nil), nil
}

// Update merges edits and schedules the auto-save. Live errors are part of
// the view, not a failure.
func (s *WizardService) Update(ctx context.Context, who domain.Identity, raw map[string]any) (WizardView, error) {
	sess, err := s.load(ctx, who)
	if err != nil {
		return WizardView{}, err
	}
	errs, err := sess.Update(raw)
	if err != nil {
		return WizardView{}, err
	}
	if err := s.persist(ctx, sess); err != nil {
		return WizardView{}, err
	}
	return s.view(sess, errs), nil
}

func (s *WizardService) Next(ctx context.Context, who domain.Identity) (WizardView, error) {
	sess, err := s.load(ctx, who)
	if err != nil {
		return WizardView{}, err
	}
	_, navErr := sess.Next(ctx)
	if err := s.persist(ctx, sess); err != nil {
		return WizardView{}, err
	}
	return s.viewErr(sess, navErr)
}

func (s *WizardService) Previous(ctx context.Context, who domain.Identity) (WizardView, error) {
	sess, err := s.load(ctx, who)
	if err != nil {
		return WizardView{}, err
	}
	_, navErr := sess.Previous()
	if err := s.persist(ctx, sess); err != nil {
		return WizardView{}, err
	}
	return s.viewErr(sess, navErr)
}

// Submit validates every step, writes the final draft and sends it to review.
// On validation failure the session jumps to the first step with an error.
func (s *WizardService) Submit(ctx context.Context, who domain.Identity) (WizardView, error) {
	sess, err := s.load(ctx, who)
	if err != nil {
		return WizardView{}, err
	}
	subErr := sess.Submit(ctx)
	if err := s.persist(ctx, sess); err != nil {
		return WizardView{}, err
	}
	if subErr == nil {
		st := sess.State()
		log.Info().Str("session", st.Key()).Str("property", st.PropertyID).Msg("wizard submitted")
	}
	return s.viewErr(sess, subErr)
}

// Discard drops the current session; an already created draft property stays.
func (s *WizardService) Discard(ctx context.Context, who domain.Identity) error {
	st, ok, err := s.store.Load(ctx, who.UserID.String())
	if err != nil {
		return err
	}
	if ok {
		s.autosaver.Forget(st.Key())
	}
	return s.store.Delete(ctx, who.UserID.String())
}

func (s *WizardService) load(ctx context.Context, who domain.Identity) (*wizard.Session, error) {
	st, ok, err := s.store.Load(ctx, who.UserID.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("wizard session: %w", domain.ErrNotFound)
	}
	if st.PropertyID == "" {
		st.PropertyID = s.autosaver.PropertyID(st.Key())
	}
	return s.session(st), nil
}

func (s *WizardService) session(st wizard.State) *wizard.Session {
	return wizard.NewSession(s.cfg, s.validator, st,
		wizard.WithAutosaver(s.autosaver),
		wizard.WithSubmit(s.props.SubmitDraft),
		wizard.WithClock(s.now),
	)
}

func (s *WizardService) persist(ctx context.Context, sess *wizard.Session) error {
	st := sess.State()
	if st.PropertyID == "" {
		st.PropertyID = s.autosaver.PropertyID(st.Key())
	}
	return s.store.Save(ctx, st)
}

func (s *WizardService) view(sess *wizard.Session, errs *domain.ValidationError) WizardView {
	v := WizardView{State: sess.State(), Step: sess.Current()}
	if !errs.Empty() {
		v.Errors = errs.Fields
	}
	return v
}

// viewErr renders the view and passes through err; validation errors are
// also attached to the view.
func (s *WizardService) viewErr(sess *wizard.Session, err error) (WizardView, error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return s.view(sess, verr), err
	}
	return s.view(sess, nil), err
}
