// Package metrics exports Prometheus metrics for tempo operators.
//
// A nil *Collector is valid and records nothing, so operators call it
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons used as the "reason" label of the dropped counter.
const (
	// ReasonSuperseded: a debounce value replaced by a newer one before
	// its quiet period elapsed.
	ReasonSuperseded = "superseded"
	// ReasonOverwritten: a sample value overwritten in the relay slot.
	ReasonOverwritten = "overwritten"
	// ReasonCompleted: a sample value still unemitted when the source
	// completed.
	ReasonCompleted = "completed"
)

// Collector holds the operator metrics.
type Collector struct {
	received    *prometheus.CounterVec
	emitted     *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	timerArms   *prometheus.CounterVec
	activeTasks *prometheus.GaugeVec
}

// NewCollector creates the operator metrics under namespace and registers
// them with reg. A nil reg leaves them unregistered.
// It panics if the metrics are already registered with reg.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		received: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_values_received_total",
				Help:      "Values received from the source by an operator",
			},
			[]string{"operator"},
		),
		emitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_values_emitted_total",
				Help:      "Values delivered downstream by an operator",
			},
			[]string{"operator"},
		),
		dropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_values_dropped_total",
				Help:      "Values an operator discarded without emitting",
			},
			[]string{"operator", "reason"},
		),
		timeouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_timeouts_total",
				Help:      "Deadlines exceeded by the source of a timeout operator",
			},
			[]string{"operator"},
		),
		timerArms: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operator_timer_arms_total",
				Help:      "Timers armed by an operator",
			},
			[]string{"operator"},
		),
		activeTasks: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "operator_tasks_active",
				Help:      "Operator goroutines currently running",
			},
			[]string{"operator"},
		),
	}
}

func (c *Collector) Received(op string) {
	if c == nil {
		return
	}
	c.received.WithLabelValues(op).Inc()
}

func (c *Collector) Emitted(op string) {
	if c == nil {
		return
	}
	c.emitted.WithLabelValues(op).Inc()
}

func (c *Collector) Dropped(op, reason string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(op, reason).Inc()
}

func (c *Collector) TimedOut(op string) {
	if c == nil {
		return
	}
	c.timeouts.WithLabelValues(op).Inc()
}

func (c *Collector) TimerArmed(op string) {
	if c == nil {
		return
	}
	c.timerArms.WithLabelValues(op).Inc()
}

// TaskStarted and TaskDone track the active task gauge.
func (c *Collector) TaskStarted(op string) {
	if c == nil {
		return
	}
	c.activeTasks.WithLabelValues(op).Inc()
}

func (c *Collector) TaskDone(op string) {
	if c == nil {
		return
	}
	c.activeTasks.WithLabelValues(op).Dec()
}
