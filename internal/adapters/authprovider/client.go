package authprovider

import (
	"context"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"talok/internal/adapters/observability"
	"talok/internal/domain"
)

const service = "auth"

// Client verifies bearer tokens against the hosted auth provider.
type Client struct {
	base     string
	hc       *http.Client
	key      string
	rl       *rate.Limiter
	cache    domain.Cache
	cacheTTL time.Duration
}

type Option func(*Client)

// WithCache stores verified identities for ttl, keyed by a hash of the token.
func WithCache(c domain.Cache, ttl time.Duration) Option {
	return func(cl *Client) { cl.cache, cl.cacheTTL = c, ttl }
}

func WithHTTPClient(hc *http.Client) Option { return func(cl *Client) { cl.hc = hc } }

func New(base, key string, rps int, opts ...Option) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("auth API key is required")
	}
	if rps <= 0 {
		rps = 20
	}
	c := &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 10 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// user is the subset of the provider's /auth/v1/user payload we rely on.
type user struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Verify resolves a bearer token into an Identity.
func (c *Client) Verify(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, domain.ErrUnauthorized
	}
	key := cacheKey(token)
	if c.cache != nil {
		var id domain.Identity
		if ok, err := c.cache.Get(ctx, key, &id); err == nil && ok {
			return id, nil
		}
	}

	var u user
	if err := c.get(ctx, "/auth/v1/user", token, &u); err != nil {
		return domain.Identity{}, err
	}
	uid, err := uuid.Parse(u.ID)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("auth: bad user id %q: %w", u.ID, domain.ErrUnauthorized)
	}
	id := domain.Identity{UserID: uid, Email: u.Email, Role: roleOf(u)}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, id, int(c.cacheTTL.Seconds())); err != nil {
			log.Warn().Err(err).Msg("cache identity failed")
		}
	}
	return id, nil
}

// roleOf reads the role from app_metadata, which only the provider's service
// role can write. user_metadata is editable by the user, so a role found there
// may pick owner, tenant or vendor but never admin.
func roleOf(u user) domain.Role {
	if r, ok := u.AppMetadata["role"].(string); ok {
		switch domain.Role(r) {
		case domain.RoleOwner, domain.RoleTenant, domain.RoleVendor, domain.RoleAdmin:
			return domain.Role(r)
		}
	}
	if r, ok := u.UserMetadata["role"].(string); ok {
		switch domain.Role(r) {
		case domain.RoleOwner, domain.RoleTenant, domain.RoleVendor:
			return domain.Role(r)
		}
	}
	return domain.RoleTenant
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "auth:" + hex.EncodeToString(sum[:])
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
func (c *Client) get(ctx context.Context, path, token string, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "talok/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(service, path, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal(service, path, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			return err

		case http.StatusUnauthorized:
			resp.Body.Close()
			return domain.ErrUnauthorized

		case http.StatusForbidden:
			resp.Body.Close()
			return domain.ErrForbidden

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("auth provider %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("auth provider bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	if lastErr == nil {
		lastErr = errors.New("auth provider: no attempt succeeded")
	}
	return lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After header (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 100ms per attempt with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 100 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
