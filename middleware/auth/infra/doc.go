// Package infra implementa domain.Validator chamando o /userinfo do IdP.
package infra
