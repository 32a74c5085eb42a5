// Package client é o SDK do lado consumidor: faz o login OAuth
// (authorization code, PKCE opcional), guarda o par de tokens, renova quando o
// servidor responde 401 e oferece um Do que já manda o bearer token.
//
// O Manager transita entre três estados: Anonymous, Authenticated e
// Refreshing. Renovações concorrentes viram uma só (singleflight), e nenhuma
// chamada renova mais de uma vez.
//
// Tudo o que o Manager lê do token é informativo; quem decide acesso é o
// /userinfo do IdP, consultado pelo gateway.
package client
