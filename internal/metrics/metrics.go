// Package metrics exposes decoder health as Prometheus metrics.
package metrics

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"

	"github.com/sweeney/dcf77-receiver/internal/dcf77"
	"github.com/sweeney/dcf77-receiver/internal/logic"
)

const namespace = "dcf77"

// Metrics holds the collectors for one receiver. Counters mirror the
// decoder's cumulative Stats, so they are fed by delta.
// Not safe for concurrent updates; scraping is safe.
type Metrics struct {
	reg *prometheus.Registry

	edges           prometheus.Counter
	spikes          prometheus.Counter
	activeRunaways  prometheus.Counter
	passiveRunaways prometheus.Counter
	desyncs         prometheus.Counter
	frames          prometheus.Counter
	minutes         *prometheus.CounterVec // label: result
	parityFailures  *prometheus.CounterVec // label: field
	jumps           *prometheus.CounterVec // label: field

	second        prometheus.Gauge
	synced        prometheus.Gauge
	lastDecoded   prometheus.Gauge
	leapSecondOne prometheus.Counter

	last dcf77.Stats
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		edges: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "Signal edges seen, spikes included",
		}),
		spikes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spikes_total",
			Help:      "Edges rejected as noise spikes",
		}),
		activeRunaways: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "active_runaways_total",
			Help:      "Pulses too long to be a 0 or 1",
		}),
		passiveRunaways: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passive_runaways_total",
			Help:      "Pauses too long to be a second or minute marker",
		}),
		desyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "desyncs_total",
			Help:      "Minute markers missed, forcing the second counter to wrap",
		}),
		frames: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Complete minute frames handed to the decoder",
		}),
		minutes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "minutes_total",
			Help:      "Published minutes by outcome",
		}, []string{"result"}),
		parityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parity_failures_total",
			Help:      "Published minutes with a failed parity check",
		}, []string{"field"}),
		jumps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jumps_total",
			Help:      "Fields that disagreed with the previous minute plus one",
		}, []string{"field"}),
		second: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "second",
			Help:      "Current second of the minute",
		}),
		synced: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synced",
			Help:      "1 once a first minute has been decoded",
		}),
		lastDecoded: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_decoded_timestamp_seconds",
			Help:      "Broadcast time of the last valid minute as a Unix timestamp",
		}),
		leapSecondOne: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leap_second_one_total",
			Help:      "Inserted leap seconds that carried a 1",
		}),
	}
}

// ObserveStats adds the growth of the decoder counters since the last call.
func (m *Metrics) ObserveStats(s dcf77.Stats) {
	m.edges.Add(float64(s.Edges - m.last.Edges))
	m.spikes.Add(float64(s.Spikes - m.last.Spikes))
	m.activeRunaways.Add(float64(s.ActiveRunaways - m.last.ActiveRunaways))
	m.passiveRunaways.Add(float64(s.PassiveRunaways - m.last.PassiveRunaways))
	m.desyncs.Add(float64(s.Desyncs - m.last.Desyncs))
	m.frames.Add(float64(s.Minutes - m.last.Minutes))
	m.last = s
}

// ObserveSecond records the current second and sync state.
func (m *Metrics) ObserveSecond(second int, synced bool) {
	m.second.Set(float64(second))
	if synced {
		m.synced.Set(1)
	} else {
		m.synced.Set(0)
	}
}

// ObserveMinute records a published minute.
func (m *Metrics) ObserveMinute(min *logic.Minute) {
	if min == nil {
		return
	}
	result := "invalid"
	if min.Valid {
		result = "valid"
		m.lastDecoded.Set(float64(min.Time.Unix()))
	}
	m.minutes.WithLabelValues(result).Inc()

	for field, p := range map[string]dcf77.Parity{
		"minute": min.Parity1,
		"hour":   min.Parity2,
		"date":   min.Parity3,
	} {
		if p == dcf77.ParityBad {
			m.parityFailures.WithLabelValues(field).Inc()
		}
	}
	for _, j := range min.Jumps {
		m.jumps.WithLabelValues(j).Inc()
	}
	if min.LeapSecondIsOne != nil && *min.LeapSecondIsOne {
		m.leapSecondOne.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Totals gathers every sample into a flat map keyed by metric name, with
// labels appended as _name_value. Used for heartbeat payloads.
func (m *Metrics) Totals() (map[string]float64, error) {
	families, err := m.reg.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			v, ok := sampleValue(metric)
			if !ok {
				continue
			}
			out[sampleKey(mf.GetName(), metric.GetLabel())] = v
		}
	}
	return out, nil
}

func sampleValue(m *dto.Metric) (float64, bool) {
	if m.GetCounter() != nil {
		return m.GetCounter().GetValue(), true
	}
	if m.GetGauge() != nil {
		return m.GetGauge().GetValue(), true
	}
	return 0, false
}

func sampleKey(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, l.GetName()+"_"+l.GetValue())
	}
	sort.Strings(parts)
	return name + "_" + strings.Join(parts, "_")
}
