// Package httpjson escreve as respostas JSON padronizadas do gateway.
//
// Toda rejeição feita por um middleware sai no mesmo formato:
//
//	{"error": "<motivo>"}
package httpjson

import (
	"encoding/json"
	"net/http"
)

// ErrorBody é o corpo das respostas de erro.
type ErrorBody struct {
	Error string `json:"error"`
}

// Write serializa v com o status informado.
func Write(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// Error escreve {"error": msg} com o status informado.
func Error(w http.ResponseWriter, status int, msg string) error {
	return Write(w, status, ErrorBody{Error: msg})
}
