// Package domain define contratos e tipos de domínio para rate limit por janela
// fixa e para limite de concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas: a janela
// (Window), a decisão (Decision) e os contratos de armazenamento ficam aqui para
// que application e infra possam ser testados isoladamente.
package domain
