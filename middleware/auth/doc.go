// Package auth é o adapter HTTP da autorização.
//
// Camadas, no mesmo desenho do rate limit:
//
//   - domain: Identity, Decision, Policy, roles e erros
//   - application: Gate (Required, RoleRequired, Optional)
//   - infra: UserInfoValidator (GET /userinfo no IdP)
//   - auth (este pacote): extrai o bearer token, chama o Gate e traduz a
//     decisão para 401/403 com corpo {"error": motivo}
//
// Handlers protegidos recebem a identidade já resolvida (nil em rotas
// Optional sem usuário) e nunca veem erros de autorização.
package auth
