// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (decisão allow/deny, acquire/timeout) sem net/http
//   - infra: implementações concretas (sliding log, token bucket, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no proxy:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 (rate limit) ou 503 (concorrência) sem chamar o upstream
//  4. Se permitido, chama o próximo handler (o forwarder)
//
// Variáveis de ambiente do binário proxy (cmd/proxy) controlam o comportamento,
// como RATE_LIMIT_PER_SEC, RATE_STRATEGY, CONCURRENCY_MAX e CONCURRENCY_TIMEOUT.
package ratelimit
