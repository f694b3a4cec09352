package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"talok/internal/domain"
	"talok/internal/wizard"
)

// ErrStaleRevision is returned when a save carries an older revision than the
// stored one. It matches domain.ErrConflict.
var ErrStaleRevision = fmt.Errorf("wizard draft: stale revision: %w", domain.ErrConflict)

// WizardStore keeps the in-progress wizard state of each user.
type WizardStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewWizardStore(c *Cache, ttl time.Duration) *WizardStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &WizardStore{c: c.c, ttl: ttl}
}

func wizardKey(userID string) string { return "wizard:" + userID }

// Save writes st unless a newer revision is already stored for the same session.
func (s *WizardStore) Save(ctx context.Context, st wizard.State) error {
	key := wizardKey(st.UserID)
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var stored wizard.State
			if json.Unmarshal(cur, &stored) == nil &&
				stored.SessionID == st.SessionID && stored.Revision > st.Revision {
				return fmt.Errorf("%w: have %d, got %d", ErrStaleRevision, stored.Revision, st.Revision)
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, s.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < 3; i++ {
		err = s.c.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func (s *WizardStore) Load(ctx context.Context, userID string) (wizard.State, bool, error) {
	b, err := s.c.Get(ctx, wizardKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return wizard.State{}, false, nil
	}
	if err != nil {
		return wizard.State{}, false, err
	}
	var st wizard.State
	if err := json.Unmarshal(b, &st); err != nil {
		return wizard.State{}, false, fmt.Errorf("decode wizard draft: %w", err)
	}
	return st, true, nil
}

func (s *WizardStore) Delete(ctx context.Context, userID string) error {
	return s.c.Del(ctx, wizardKey(userID)).Err()
}
