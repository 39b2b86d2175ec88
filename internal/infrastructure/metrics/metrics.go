package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the reminder engine's Prometheus collectors.
type Metrics struct {
	TicksTotal       prometheus.Counter
	RemindersSent    *prometheus.CounterVec
	SendFailures     *prometheus.CounterVec
	InstancesCreated prometheus.Counter
}

// New registers and returns the domain metrics on the given registry.
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminder_ticks_total",
			Help: "Total number of reminder scheduler ticks",
		}),
		RemindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total reminders successfully sent, by channel",
		}, []string{"channel"}),
		SendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_send_failures_total",
			Help: "Total failed reminder sends, by channel",
		}, []string{"channel"}),
		InstancesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "recurring_instances_created_total",
			Help: "Total recurring task instances materialized",
		}),
	}

	registry.MustRegister(m.TicksTotal, m.RemindersSent, m.SendFailures, m.InstancesCreated)

	return m
}

// NewUnregistered returns metrics bound to a private registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
