package auth

import (
	"context"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/redis/go-redis/v9"
)

// jwksRefresher fetches and caches a remote JWKS, coalescing concurrent
// refreshes into one in-flight fetch. Grounded on the teacher's JWKProvider
// (process-local cache.Cache), extended with an optional Redis lock so a
// fleet of instances also coalesces across processes.
type jwksRefresher struct {
	uri      string
	ttl      time.Duration
	fetch    func(ctx context.Context, uri string) (jwk.Set, error)
	redis    *redis.Client
	lockKey  string

	mu      sync.Mutex
	cached  jwk.Set
	fetched time.Time
	inFlight chan struct{}
}

func newJWKSRefresher(uri string, ttl time.Duration, redisClient *redis.Client) *jwksRefresher {
	return &jwksRefresher{
		uri:     uri,
		ttl:     ttl,
		fetch:   func(ctx context.Context, uri string) (jwk.Set, error) { return jwk.Fetch(ctx, uri) },
		redis:   redisClient,
		lockKey: "artifortress:jwks_refresh:" + uri,
	}
}

// Get returns the cached key set, refreshing it (at most once concurrently)
// if ttl has elapsed since the last successful fetch. A refresh failure
// returns the prior cached set rather than an error, so a failed refresh
// never breaks validation — callers merge this with a static fallback set
// besides.
func (r *jwksRefresher) Get(ctx context.Context) jwk.Set {
	r.mu.Lock()
	if r.cached != nil && time.Since(r.fetched) < r.ttl {
		set := r.cached
		r.mu.Unlock()

		return set
	}

	if r.inFlight != nil {
		ch := r.inFlight
		r.mu.Unlock()
		<-ch

		r.mu.Lock()
		set := r.cached
		r.mu.Unlock()

		return set
	}

	ch := make(chan struct{})
	r.inFlight = ch
	r.mu.Unlock()

	r.refreshDistributed(ctx)

	r.mu.Lock()
	r.inFlight = nil
	set := r.cached
	r.mu.Unlock()
	close(ch)

	return set
}

func (r *jwksRefresher) refreshDistributed(ctx context.Context) {
	if r.redis != nil {
		ok, err := r.redis.SetNX(ctx, r.lockKey, "1", r.ttl).Result()
		if err == nil && !ok {
			// another process holds the lock; use whatever is cached locally.
			return
		}
	}

	set, err := r.fetch(ctx, r.uri)
	if err != nil {
		return
	}

	r.mu.Lock()
	r.cached = set
	r.fetched = time.Now()
	r.mu.Unlock()
}
