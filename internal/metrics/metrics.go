// Package metrics exposes Prometheus counters for admission outcomes and notification delivery.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "community_events"

// Registry holds every collector of this service, kept apart from the global default registry.
var Registry = prometheus.NewRegistry()

var (
	operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Counter of engine operations broken out by operation and outcome kind.",
		},
		[]string{"operation", "outcome"},
	)

	admissionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "admissions_total",
			Help:      "Counter of successful admissions broken out by registration type.",
		},
		[]string{"type"},
	)

	promotionCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "waitlist_promotions_total",
			Help:      "Counter of waitlist entries promoted to registered.",
		},
	)

	notificationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifier",
			Name:      "notifications_total",
			Help:      "Counter of notification deliveries broken out by sender and result.",
		},
		[]string{"sender", "result"},
	)
)

var registerMetrics sync.Once

// Register all metrics.
func Register(customCollectors ...prometheus.Collector) {
	registerMetrics.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		Registry.MustRegister(operationCounter)
		Registry.MustRegister(admissionCounter)
		Registry.MustRegister(promotionCounter)
		Registry.MustRegister(notificationCounter)
		for _, collector := range customCollectors {
			Registry.MustRegister(collector)
		}
	})
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordOperation counts an engine operation. An empty outcome means success.
func RecordOperation(operation, outcome string) {
	if outcome == "" {
		outcome = "ok"
	}
	operationCounter.WithLabelValues(operation, outcome).Inc()
}

func RecordAdmission(registrationType string) {
	admissionCounter.WithLabelValues(registrationType).Inc()
}

func RecordPromotion() {
	promotionCounter.Inc()
}

func RecordNotification(sender string, err error) {
	result := "sent"
	if err != nil {
		result = "failed"
	}
	notificationCounter.WithLabelValues(sender, result).Inc()
}
