// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - SlidingLogStore: sliding log por chave com janela fixa de 1s (estratégia padrão)
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate
//   - RedisStatsStore / MemoryStatsStore: contadores de decisão allow/deny
//   - ChanPool: semáforo simples para limite de concorrência
package infra
