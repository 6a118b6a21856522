package observer

import "github.com/prometheus/client_golang/prometheus"

// Metrics carries the observer's Prometheus instruments.
type Metrics struct {
	ReadingsReceived prometheus.Counter
	AcksReceived     prometheus.Counter
	DecodeErrors     prometheus.Counter
	CommandsIssued   prometheus.Counter
	UpdatesDropped   prometheus.Counter
	KnownDevices     prometheus.Gauge
}

// NewMetrics registers the instruments on reg (default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		ReadingsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorex_readings_received_total",
			Help: "Readings consumed from the telemetry topic.",
		}),
		AcksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorex_acks_received_total",
			Help: "Control acknowledgements consumed from the ack topic.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorex_decode_errors_total",
			Help: "Payloads dropped as malformed.",
		}),
		CommandsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorex_commands_issued_total",
			Help: "Control commands published by this observer.",
		}),
		UpdatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sensorex_updates_dropped_total",
			Help: "Presentation updates lost to a slow consumer.",
		}),
		KnownDevices: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sensorex_known_devices",
			Help: "Devices currently present in the state store.",
		}),
	}
	reg.MustRegister(
		m.ReadingsReceived,
		m.AcksReceived,
		m.DecodeErrors,
		m.CommandsIssued,
		m.UpdatesDropped,
		m.KnownDevices,
	)
	return m
}
