package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

// Key identifica quem está sendo limitado (ex: IP de origem, API key).
//
// A igualdade é comparação exata de string: "::ffff:1.2.3.4" e "1.2.3.4"
// são chaves distintas. Não há normalização de endereço.
type Key string

// Limiter representa algo que pode decidir se uma ação é permitida agora.
//
// Observação: a implementação pode ser sliding log, token-bucket, etc.
// A decisão nunca falha; o contrato é só o booleano.
type Limiter interface {
	Allow() bool
}

// LimiterStore obtém um limiter por chave.
// A implementação pode manter cache, TTL, janitor, etc.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação e o header não deve ser emitido.
	RetryAfter time.Duration
}
