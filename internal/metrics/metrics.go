package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas del core admin. Viven en un paquete propio para que authz,
// actiontoken, audit y dispatch puedan instrumentarse sin importar HTTP.

var (
	AuthzDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adminkit_authz_decisions_total",
		Help: "Decisiones de permisos por acción y resultado",
	}, []string{"action", "result"}) // result: allow|deny

	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adminkit_action_tokens_issued_total",
		Help: "Action tokens emitidos por acción",
	}, []string{"action"})

	TokenVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adminkit_action_token_verifications_total",
		Help: "Verificaciones de action tokens por resultado",
	}, []string{"result"}) // valid|tampered|expired|mismatched target|replayed|error

	AuditWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adminkit_audit_writes_total",
		Help: "Escrituras de audit log por resultado",
	}, []string{"result"}) // ok|failed

	DispatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "adminkit_dispatch_duration_seconds",
		Help:    "Latencia de Execute por acción",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "outcome"})

	IntrospectionWarnings = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adminkit_introspection_warnings_total",
		Help: "Entidades descartadas durante discovery",
	})

	RegisteredModels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "adminkit_registered_models",
		Help: "Cantidad de modelos publicados en el registry",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		AuthzDecisions,
		TokensIssued,
		TokenVerifications,
		AuditWrites,
		DispatchLatency,
		IntrospectionWarnings,
		RegisteredModels,
	}
}

// Register registra las métricas del core en el registry indicado (o el default si es nil).
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := RegisterCollector(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// RegisterCollector registra el collector, ignorando duplicados.
func RegisterCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
