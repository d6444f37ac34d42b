package domain

import (
	"context"
	"time"
)

// StatsEvent representa uma decisão de admissão do rate limit.
//
// Method/Path são strings genéricas de propósito: o evento serve para
// qualquer transporte, não só HTTP.
//
// Cuidado com cardinalidade: gravar Key/Path sem controle pode explodir
// o número de chaves em uma base como Redis.
type StatsEvent struct {
	Key     Key
	Allowed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas de decisão.
//
// O middleware trata erro como best-effort: falha de gravação nunca
// derruba a requisição.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
