package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for availability and booking flows.
type BookingMetrics struct {
	createdTotal         *prometheus.CounterVec
	conflictsTotal       prometheus.Counter
	availabilityDuration prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Total bookings created",
		}, []string{"service"}),
		conflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "bookings",
			Name:      "conflicts_total",
			Help:      "Booking attempts rejected because the slot was taken",
		}),
		availabilityDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "availability",
			Name:      "duration_seconds",
			Help:      "Latency of availability computation including the bookings read",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.conflictsTotal, m.availabilityDuration)
	return m
}

func (m *BookingMetrics) ObserveCreated(service string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(service).Inc()
}

func (m *BookingMetrics) ObserveConflict() {
	if m == nil {
		return
	}
	m.conflictsTotal.Inc()
}

func (m *BookingMetrics) ObserveAvailability(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityDuration.Observe(seconds)
}

// ReminderMetrics exposes counters for reminder dispatch.
type ReminderMetrics struct {
	dispatchedTotal *prometheus.CounterVec
	batchSize       prometheus.Histogram
}

func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	m := &ReminderMetrics{
		dispatchedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "dispatched_total",
			Help:      "Reminder tasks moved to a terminal state",
		}, []string{"kind", "status"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Subsystem: "reminders",
			Name:      "batch_size",
			Help:      "Due tasks selected per dispatch run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.dispatchedTotal, m.batchSize)
	return m
}

func (m *ReminderMetrics) ObserveDispatched(kind, status string) {
	if m == nil {
		return
	}
	m.dispatchedTotal.WithLabelValues(kind, status).Inc()
}

func (m *ReminderMetrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.batchSize.Observe(float64(size))
}
