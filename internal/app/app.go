// Package app holds the use cases of the rental backend. Services own
// authorization and lifecycle orchestration; persistence goes through the
// domain ports.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"talok/internal/domain"
)

const defaultDBTimeout = 8 * time.Second

type base struct {
	timeout time.Duration
	now     domain.Clock
}

type Option func(*base)

// WithDBTimeout bounds every repository call made by the service.
func WithDBTimeout(d time.Duration) Option { return func(b *base) { b.timeout = d } }

func WithClock(c domain.Clock) Option { return func(b *base) { b.now = c } }

func newBase(opts []Option) base {
	b := base{timeout: defaultDBTimeout, now: domain.SystemClock}
	for _, o := range opts {
		o(&b)
	}
	return b
}

// db derives the context for one repository call. Expiry surfaces as
// context.DeadlineExceeded, which the HTTP layer maps to 504.
func (b base) db(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

func canAccessOwned(id domain.Identity, owner uuid.UUID) bool {
	return id.IsAdmin() || id.UserID == owner
}

func isLeaseParty(id domain.Identity, l domain.Lease) bool {
	if id.IsAdmin() || id.UserID == l.OwnerID {
		return true
	}
	for _, t := range l.TenantIDs {
		if t == id.UserID {
			return true
		}
	}
	return false
}
