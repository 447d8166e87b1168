// Package metrics содержит метрики Prometheus бота.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dealhunter"

// Metrics хранит счётчики обработки обновлений.
type Metrics struct {
	UpdatesTotal     *prometheus.CounterVec
	QueriesTotal     *prometheus.CounterVec
	ActionsTotal     *prometheus.CounterVec
	SendFailures     prometheus.Counter
	DuplicateUpdates prometheus.Counter
}

// New создаёт и регистрирует метрики. При nil используется регистратор по умолчанию.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		UpdatesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Total number of webhook updates by kind",
			},
			[]string{"kind"},
		),
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Total number of resolved search queries by match step",
			},
			[]string{"match"},
		),
		ActionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_total",
				Help:      "Total number of button presses by outcome",
			},
			[]string{"outcome"},
		),
		SendFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "send_failures_total",
				Help:      "Total number of failed Bot API calls",
			},
		),
		DuplicateUpdates: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_updates_total",
				Help:      "Total number of redelivered updates skipped",
			},
		),
	}
}
