// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Limiter.Decide(ctx, key) retorna uma Decision (allow/deny + retry-after)
// e Limiter.RemainingTime(ctx, key) quanto falta para a janela zerar.
package application
