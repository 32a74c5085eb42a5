package stats

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus expõe as decisões como contador com labels de baixa cardinalidade
// (source, outcome, status). Key e Path ficam de fora de propósito.
type Prometheus struct {
	decisions *prometheus.CounterVec
}

// NewPrometheus cria e registra as métricas no registerer informado
// (prometheus.DefaultRegisterer quando nil).
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_gateway_decisions_total",
			Help: "Total number of allow/deny decisions taken by the gateway middlewares",
		}, []string{"source", "outcome", "status"}),
	}
	if err := reg.Register(p.decisions); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Prometheus) Record(_ context.Context, ev Event) error {
	p.decisions.WithLabelValues(string(ev.Source), ev.outcome(), ev.statusLabel()).Inc()
	return nil
}
