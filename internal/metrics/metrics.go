package metrics

import (
	"net/http"
	"strconv"

	"github.com/calprompt/calprompt/internal/event_bus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "calprompt"

// Metrics counts prompts and calendar mutations from the events published on the event bus.
type Metrics struct {
	registry       *prometheus.Registry
	prompts        *prometheus.CounterVec
	promptDuration *prometheus.HistogramVec
	mutations      *prometheus.CounterVec
	requests       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompts_total",
			Help:      "Prompts handled, by intent, response type and failure class.",
		}, []string{"intent", "envelope", "error"}),
		promptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prompt_duration_seconds",
			Help:      "Time spent handling a prompt end to end.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"intent"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_mutations_total",
			Help:      "Calendar events created, updated or deleted.",
		}, []string{"operation"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by route and status code.",
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		m.prompts,
		m.promptDuration,
		m.mutations,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Subscribe hooks the metrics onto the bus. The returned function removes every subscription.
func (m *Metrics) Subscribe(bus *event_bus.EventBus) (unsubscribe func()) {
	unsubscribers := []func(){
		event_bus.SubscribeTyped(bus, event_bus.PromptHandledType, func(e event_bus.EventT[event_bus.PromptHandled]) error {
			intent := e.Data.Intent
			if intent == "" {
				intent = "none"
			}
			m.prompts.WithLabelValues(intent, e.Data.Envelope, e.Data.Error).Inc()
			m.promptDuration.WithLabelValues(intent).Observe(e.Data.Duration.Seconds())
			return nil
		}),
	}
	for eventType, operation := range map[event_bus.EventType]string{
		event_bus.CalendarEventCreatedType: "create",
		event_bus.CalendarEventUpdatedType: "update",
		event_bus.CalendarEventDeletedType: "delete",
	} {
		counter := m.mutations.WithLabelValues(operation)
		unsubscribers = append(unsubscribers, bus.Subscribe(eventType, func(event_bus.Event) error {
			counter.Inc()
			return nil
		}))
	}
	return func() {
		for _, u := range unsubscribers {
			u()
		}
	}
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method string, route string, status int) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
