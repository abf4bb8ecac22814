package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	GatewayRequests prometheus.Counter
	GatewayErrors   prometheus.Counter
	TurnsCompleted  prometheus.Counter
	TurnsOrphaned   prometheus.Counter
	LedgerDebits    prometheus.Counter
	LedgerCredits   prometheus.Counter
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			GatewayRequests: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "gateway_requests_total",
				Help:      "Total completion requests dispatched to a provider",
			}),
			GatewayErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "gateway_errors_total",
				Help:      "Total completion requests that failed",
			}),
			TurnsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "chat_turns_completed_total",
				Help:      "Total chat turns that persisted an assistant reply",
			}),
			TurnsOrphaned: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "chat_turns_orphaned_total",
				Help:      "Total user turns left without an assistant reply",
			}),
			LedgerDebits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "ledger_debits_total",
				Help:      "Total usage debits applied to token balances",
			}),
			LedgerCredits: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dialogueflow",
				Name:      "ledger_credits_total",
				Help:      "Total administrative credits applied to token balances",
			}),
		}
		prometheus.MustRegister(
			global.GatewayRequests,
			global.GatewayErrors,
			global.TurnsCompleted,
			global.TurnsOrphaned,
			global.LedgerDebits,
			global.LedgerCredits,
		)
	})
	return global
}
