package domain

// Status é o código que o gate devolve; só 200, 401 e 403 são usados.
type Status int

const (
	StatusOK           Status = 200
	StatusUnauthorized Status = 401
	StatusForbidden    Status = 403
)

const (
	ReasonNoToken = "no token"
	ReasonInvalid = "invalid or expired"
)

// RoleReason monta o motivo de 403 para uma role exigida.
func RoleReason(role string) string { return "required role: " + role }

// Decision é o resultado de uma checagem de autorização.
// Vive só durante a requisição.
type Decision struct {
	Identity *Identity
	Status   Status
	Reason   string
	// Err é a causa da recusa (ErrMissingCredential, ErrInsufficientRole...).
	Err error
}

func (d Decision) Allowed() bool { return d.Status == StatusOK }

// Deny monta uma recusa com o status que StatusFor dá para err.
func Deny(err error, reason string) Decision {
	return Decision{Status: Status(StatusFor(err)), Reason: reason, Err: err}
}
