package domain

import "context"

// SlotPool é um recurso de capacidade finita, como requisições em voo.
//
// Acquire bloqueia até conseguir vaga ou até o ctx encerrar. O release
// devolvido libera a vaga; chamadas extras não fazem nada.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	// InUse é só informativo (logs).
	InUse() int
}
