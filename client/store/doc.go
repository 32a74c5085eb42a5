// Package store tem os backends de chave/valor onde o client guarda tokens,
// identidade e o state do login.
//
//   - Memory: só no processo (testes, CLIs de vida curta)
//   - File: um JSON em disco, com lock de arquivo entre processos
//   - Keyring: cofre do sistema operacional
//   - Redis: sessões do lado do servidor
//
// Todos seguem o mesmo contrato: Get devolve (valor, achou, erro) e Delete de
// chave inexistente não é erro.
package store
