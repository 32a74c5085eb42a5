// Package ratelimit fornece adapters HTTP (net/http) para rate limit por janela
// fixa e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (Limiter: decisão allow/deny; acquire/timeout) sem net/http
//   - infra: implementações concretas (janela em memória ou Redis, semáforo)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama application.Limiter para obter a decisão
//  3. Se bloqueado, responde 429 {"error": ...} com Retry-After (rate limit)
//     ou 503 (concorrência)
//  4. Se permitido, chama o próximo handler (ex: gate de autorização)
//
// O limiter é uma instância explícita passada em Options; dois gateways no mesmo
// processo não compartilham contagem a menos que usem o mesmo store.
package ratelimit
