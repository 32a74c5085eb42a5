// Package domain define os contratos de autorização do gateway: quem é o
// usuário (Identity), o que o gate decidiu (Decision) e como o token vira
// identidade (Validator).
//
// Nada aqui depende de net/http; status HTTP aparecem só como números.
package domain
