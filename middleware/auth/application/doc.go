// Package application contém o gate de autorização: junta o Validator com a
// checagem de role e devolve uma domain.Decision. Não conhece HTTP.
package application
