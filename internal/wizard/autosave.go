package wizard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SaveFunc persists a partial wizard state and returns it with PropertyID
// filled once the draft exists.
type SaveFunc func(ctx context.Context, st State) (State, error)

// Autosaver debounces saves per session key. Only the newest state scheduled
// during the quiet period is written; saves for the same key never overlap.
type Autosaver struct {
	delay   time.Duration
	timeout time.Duration
	save    SaveFunc
	onSaved func(State, error)

	mu      sync.Mutex
	entries map[string]*pendingSave
	stopped bool
}

type pendingSave struct {
	timer      *time.Timer
	state      *State
	propertyID string
	saving     sync.Mutex
}

type AutosaveOption func(*Autosaver)

// WithSaveTimeout bounds each background save.
func WithSaveTimeout(d time.Duration) AutosaveOption {
	return func(a *Autosaver) { a.timeout = d }
}

// WithOnSaved registers a callback invoked after each background save.
func WithOnSaved(fn func(State, error)) AutosaveOption {
	return func(a *Autosaver) { a.onSaved = fn }
}

func NewAutosaver(delay time.Duration, save SaveFunc, opts ...AutosaveOption) *Autosaver {
	a := &Autosaver{
		delay:   delay,
		timeout: 10 * time.Second,
		save:    save,
		entries: map[string]*pendingSave{},
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Schedule replaces any pending state for the key and restarts the quiet period.
func (a *Autosaver) Schedule(st State) {
	key := st.Key()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	e := a.entries[key]
	if e == nil {
		e = &pendingSave{}
		a.entries[key] = e
	}
	cp := st.Clone()
	e.state = &cp
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(a.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		st, ok, err := a.run(ctx, key)
		if !ok {
			return
		}
		if err != nil {
			log.Warn().Err(err).Str("session", key).Msg("wizard autosave failed")
		}
		if a.onSaved != nil {
			a.onSaved(st, err)
		}
	})
}

// Flush writes the pending state for key immediately. ok is false when
// nothing was pending.
func (a *Autosaver) Flush(ctx context.Context, key string) (State, bool, error) {
	a.mu.Lock()
	if e := a.entries[key]; e != nil && e.timer != nil {
		e.timer.Stop()
	}
	a.mu.Unlock()
	return a.run(ctx, key)
}

// PropertyID returns the draft id created for a key by an earlier save.
func (a *Autosaver) PropertyID(key string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.entries[key]; e != nil {
		return e.propertyID
	}
	return ""
}

// Forget drops all bookkeeping for a key, cancelling any pending save.
func (a *Autosaver) Forget(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e := a.entries[key]; e != nil && e.timer != nil {
		e.timer.Stop()
	}
	delete(a.entries, key)
}

// Stop cancels every pending save. Call Flush first for states that must not be lost.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for _, e := range a.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
}

func (a *Autosaver) run(ctx context.Context, key string) (State, bool, error) {
	a.mu.Lock()
	e := a.entries[key]
	a.mu.Unlock()
	if e == nil {
		return State{}, false, nil
	}

	e.saving.Lock()
	defer e.saving.Unlock()

	a.mu.Lock()
	pending := e.state
	e.state = nil
	known := e.propertyID
	a.mu.Unlock()
	if pending == nil {
		return State{}, false, nil
	}
	st := *pending
	if st.PropertyID == "" {
		st.PropertyID = known
	}

	saved, err := a.save(ctx, st)
	if err != nil {
		a.mu.Lock()
		// keep the failed state unless a newer one arrived meanwhile
		if e.state == nil {
			e.state = pending
		}
		a.mu.Unlock()
		return st, true, err
	}
	if saved.PropertyID != "" {
		a.mu.Lock()
		e.propertyID = saved.PropertyID
		a.mu.Unlock()
	}
	return saved, true, nil
}
