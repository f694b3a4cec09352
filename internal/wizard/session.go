package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talok/internal/domain"
)

// State is the persisted progress of one wizard run.
type State struct {
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Values     map[string]any `json:"values"`
	Step       int            `json:"step"`
	PropertyID string         `json:"property_id,omitempty"`
	Revision   int64          `json:"revision"`
	Submitted  bool           `json:"submitted"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (s State) Key() string { return s.UserID + ":" + s.SessionID }

func (s State) Type() string { return typeOf(s.Values) }

// Clone copies the state deeply enough that later merges do not alias it.
func (s State) Clone() State {
	out := s
	out.Values = make(map[string]any, len(s.Values))
	for k, v := range s.Values {
		out.Values[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case []any:
		return append([]any(nil), x...)
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	}
	return v
}

// SubmitFunc finalises a fully valid state.
type SubmitFunc func(ctx context.Context, st State) (State, error)

var (
	ErrSubmitted  = errors.New("wizard: session already submitted")
	ErrFirstStep  = errors.New("wizard: already on the first step")
	ErrNoSubmit   = errors.New("wizard: no submit handler")
	ErrUnknownKey = errors.New("wizard: unknown field")
)

// Session orchestrates one wizard run over a State: merging edits,
// scheduling auto-saves, step navigation and submission.
type Session struct {
	cfg       *Config
	validator *Validator
	state     State
	autosaver *Autosaver
	submit    SubmitFunc
	now       domain.Clock
}

type SessionOption func(*Session)

func WithAutosaver(a *Autosaver) SessionOption { return func(s *Session) { s.autosaver = a } }
func WithSubmit(fn SubmitFunc) SessionOption   { return func(s *Session) { s.submit = fn } }
func WithClock(c domain.Clock) SessionOption   { return func(s *Session) { s.now = c } }

func NewSession(cfg *Config, v *Validator, st State, opts ...SessionOption) *Session {
	if st.Values == nil {
		st.Values = map[string]any{}
	}
	s := &Session{cfg: cfg, validator: v, state: st, now: domain.SystemClock}
	for _, o := range opts {
		o(s)
	}
	if s.validator == nil {
		s.validator = NewValidator(cfg)
	}
	s.clampStep()
	return s
}

func (s *Session) State() State { return s.state.Clone() }

// Update merges raw values into the form, drops values of fields that are
// no longer visible, and schedules a debounced auto-save. Unknown keys are
// rejected. The returned errors are the live validation of the current step.
func (s *Session) Update(raw map[string]any) (*domain.ValidationError, error) {
	if s.state.Submitted {
		return nil, ErrSubmitted
	}
	for k := range raw {
		if _, ok := s.cfg.Field(k); !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownKey, k)
		}
	}
	for k, v := range raw {
		f, _ := s.cfg.Field(k)
		c := Coerce(f, v)
		if c == nil {
			delete(s.state.Values, k)
			continue
		}
		s.state.Values[k] = c
	}
	s.pruneHidden()
	s.clampStep()
	s.touch()
	if s.autosaver != nil {
		s.autosaver.Schedule(s.state)
	}
	return s.liveErrors(), nil
}

// liveErrors validates only the fields the user already filled on the current step,
// so untouched required fields do not light up while typing.
func (s *Session) liveErrors() *domain.ValidationError {
	all := s.validator.ValidateStep(s.state.Step, s.state.Values)
	out := domain.NewValidationError()
	for id, msgs := range all.Fields {
		if _, filled := s.state.Values[id]; !filled {
			continue
		}
		for _, m := range msgs {
			out.Add(id, m)
		}
	}
	return out
}

// pruneHidden removes values of fields hidden by the current type or conditions.
func (s *Session) pruneHidden() {
	for changed := true; changed; {
		changed = false
		for k := range s.state.Values {
			if k == TypeField {
				continue
			}
			if !FieldVisible(s.cfg, k, s.state.Values) {
				delete(s.state.Values, k)
				changed = true
			}
		}
	}
}

func (s *Session) touch() {
	s.state.Revision++
	s.state.UpdatedAt = s.now()
}

// clampStep moves the cursor onto a step shown for the current type.
func (s *Session) clampStep() {
	order := s.cfg.StepsFor(s.state.Type())
	if len(order) == 0 {
		s.state.Step = 0
		return
	}
	if indexOf(order, s.state.Step) >= 0 {
		return
	}
	for _, si := range order {
		if si > s.state.Step {
			s.state.Step = si
			return
		}
	}
	s.state.Step = order[len(order)-1]
}

// Current renders the current step without errors.
func (s *Session) Current() StepView {
	return RenderStep(s.cfg, s.validator, s.state.Step, s.state.Values, nil)
}

// Next validates the current step and advances. On validation failure the
// step is re-rendered with its errors and a *domain.ValidationError is returned.
func (s *Session) Next(ctx context.Context) (StepView, error) {
	if s.state.Submitted {
		return StepView{}, ErrSubmitted
	}
	if errs := s.validator.ValidateStep(s.state.Step, s.state.Values); !errs.Empty() {
		return RenderStep(s.cfg, s.validator, s.state.Step, s.state.Values, errs), errs
	}
	if err := s.Flush(ctx); err != nil {
		return s.Current(), err
	}
	order := s.cfg.StepsFor(s.state.Type())
	if pos := indexOf(order, s.state.Step); pos >= 0 && pos < len(order)-1 {
		s.state.Step = order[pos+1]
		s.touch()
	}
	return s.Current(), nil
}

func (s *Session) Previous() (StepView, error) {
	order := s.cfg.StepsFor(s.state.Type())
	pos := indexOf(order, s.state.Step)
	if pos <= 0 {
		return s.Current(), ErrFirstStep
	}
	s.state.Step = order[pos-1]
	s.touch()
	return s.Current(), nil
}

// Flush persists the latest state now, creating the draft if needed.
func (s *Session) Flush(ctx context.Context) error {
	if s.autosaver == nil {
		return nil
	}
	key := s.state.Key()
	s.autosaver.Schedule(s.state)
	saved, ok, err := s.autosaver.Flush(ctx, key)
	if err != nil {
		return err
	}
	if ok && saved.PropertyID != "" {
		s.state.PropertyID = saved.PropertyID
	} else if id := s.autosaver.PropertyID(key); id != "" {
		s.state.PropertyID = id
	}
	return nil
}

// Submit runs the full validation, flushes the draft and hands the state to
// the submit handler. The session is marked submitted on success.
func (s *Session) Submit(ctx context.Context) error {
	if s.state.Submitted {
		return ErrSubmitted
	}
	if errs := s.validator.ValidateAll(s.state.Values); !errs.Empty() {
		if step, ok := s.firstErrorStep(errs); ok {
			s.state.Step = step
		}
		return errs
	}
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.submit == nil {
		return ErrNoSubmit
	}
	done, err := s.submit(ctx, s.state.Clone())
	if err != nil {
		return err
	}
	if done.PropertyID != "" {
		s.state.PropertyID = done.PropertyID
	}
	s.state.Submitted = true
	s.touch()
	if s.autosaver != nil {
		s.autosaver.Forget(s.state.Key())
	}
	return nil
}

func (s *Session) firstErrorStep(errs *domain.ValidationError) (int, bool) {
	best := -1
	for id := range errs.Fields {
		if si, ok := s.cfg.StepOf(id); ok && (best < 0 || si < best) {
			best = si
		}
	}
	return best, best >= 0
}
