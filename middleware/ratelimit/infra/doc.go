// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: janela fixa por chave em memória, com janitor
//   - RedisStore: janela fixa compartilhada entre réplicas (INCR + PEXPIRE)
//   - Semaphore: vagas de requisições em voo (limite de concorrência)
package infra
