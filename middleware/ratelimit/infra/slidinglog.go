package infra

import (
	"sync"
	"time"

	"ratelimit-proxy/middleware/ratelimit/domain"
)

// logWindow é o intervalo deslizante do SlidingLogStore. A janela é fixa:
// o que varia por configuração é só o limite de admissões dentro dela.
const logWindow = 1 * time.Second

// SlidingLogStore é uma implementação de infra baseada em sliding log:
// para cada chave mantém os timestamps das requisições admitidas na última
// janela de 1s. A decisão poda os timestamps vencidos, compara o tamanho
// restante com o limite e só então registra o novo timestamp.
//
// Semântica exata da comparação: `float64(len) >= limit`. Um limite
// fracionário como 2.5 se comporta como 2 — no máximo duas admissões por
// segundo deslizante. Uma chamada negada nunca registra timestamp, então
// negar é idempotente.
//
// Toda a sequência poda-compara-registra roda sob o mutex do store, o que
// garante linearizabilidade para chamadas concorrentes da mesma chave.
type SlidingLogStore struct {
	mu           sync.Mutex
	entries      map[string]*logEntry
	limit        float64
	now          func() time.Time
	idleTTL      time.Duration
	cleanupEvery time.Duration
}

type logEntry struct {
	stamps   []time.Time
	lastSeen time.Time
}

type SlidingLogOption func(*SlidingLogStore)

// WithNow injeta o relógio do store. Útil para testes determinísticos.
func WithNow(now func() time.Time) SlidingLogOption {
	return func(s *SlidingLogStore) { s.now = now }
}

func WithLogIdleTTL(d time.Duration) SlidingLogOption {
	return func(s *SlidingLogStore) { s.idleTTL = d }
}

func WithLogCleanupEvery(d time.Duration) SlidingLogOption {
	return func(s *SlidingLogStore) { s.cleanupEvery = d }
}

func NewSlidingLogStore(limit float64, opts ...SlidingLogOption) *SlidingLogStore {
	s := &SlidingLogStore{
		entries:      make(map[string]*logEntry),
		limit:        limit,
		now:          time.Now,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SlidingLogStore) Limit() float64 { return s.limit }

func (s *SlidingLogStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// Get implementa domain.LimiterStore. O limiter devolvido é um handle leve:
// chamadas para a mesma chave compartilham a mesma janela.
func (s *SlidingLogStore) Get(key domain.Key) domain.Limiter {
	return logLimiter{store: s, key: string(key)}
}

type logLimiter struct {
	store *SlidingLogStore
	key   string
}

func (l logLimiter) Allow() bool { return l.store.allow(l.key) }

func (s *SlidingLogStore) allow(key string) bool {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[key]
	if !ok {
		ent = &logEntry{}
		s.entries[key] = ent
	}
	ent.lastSeen = now

	// poda: só sobrevive timestamp com now-t < 1s
	kept := ent.stamps[:0]
	for _, t := range ent.stamps {
		if now.Sub(t) < logWindow {
			kept = append(kept, t)
		}
	}
	ent.stamps = kept

	if float64(len(ent.stamps)) >= s.limit {
		return false
	}

	ent.stamps = append(ent.stamps, now)
	return true
}

// Cleanup remove chaves ociosas cuja janela (pós-poda) está vazia.
// Remover uma janela vazia nunca muda uma decisão futura: os timestamps
// vencidos seriam podados de qualquer forma.
func (s *SlidingLogStore) Cleanup() {
	now := s.now()
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !ent.lastSeen.Before(cutoff) {
			continue
		}
		empty := true
		for _, t := range ent.stamps {
			if now.Sub(t) < logWindow {
				empty = false
				break
			}
		}
		if empty {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa chaves inativas periodicamente.
// Pare cancelando o contexto.
func (s *SlidingLogStore) StartJanitor(ctx DoneContext) {
	startJanitor(ctx, s.cleanupEvery, s.Cleanup)
}

// DoneContext é o mínimo necessário para aceitar context.Context sem importar context aqui.
// (Permite reuso em libs sem acoplar.)
type DoneContext interface {
	Done() <-chan struct{}
}

func startJanitor(ctx DoneContext, every time.Duration, sweep func()) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sweep()
			}
		}
	}()
}
