package infra

import (
	"sync"
	"time"

	"ratelimit-proxy/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// BucketStore é a estratégia alternativa baseada em token-bucket
// (x/time/rate) com cache por chave e limpeza periódica.
//
// Diferente do SlidingLogStore, o bucket permite rajada inicial de até
// `burst` requisições e reabastece continuamente na taxa configurada.
type BucketStore struct {
	mu           sync.Mutex
	entries      map[string]*bucketEntry
	rps          rate.Limit
	burst        int
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithBucketIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithBucketCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries:      make(map[string]*bucketEntry),
		rps:          rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) RPS() float64 { return float64(s.rps) }

func (s *BucketStore) Burst() int { return s.burst }

func (s *BucketStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore.
func (s *BucketStore) Get(key domain.Key) domain.Limiter {
	return s.GetString(string(key))
}

func (s *BucketStore) GetString(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if ent, ok := s.entries[key]; ok {
		ent.lastSeen = now
		return ent.lim
	}

	lim := rate.NewLimiter(s.rps, s.burst)
	s.entries[key] = &bucketEntry{lim: lim, lastSeen: now}
	return lim
}

func (s *BucketStore) Cleanup() {
	cutoff := time.Now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *BucketStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}
