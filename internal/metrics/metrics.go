package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "registration"

// Registry is the Prometheus registry for every metric this server exposes.
var Registry = prometheus.NewRegistry()

// AppInfo exposes build information as labels; the value is always 1.
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// Intake metrics

// PipelineSteps counts intake pipeline steps by outcome.
var PipelineSteps = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_steps_total",
		Help:      "Registration intake steps by step name and outcome",
	},
	[]string{"step", "outcome"}, // outcome: succeeded|failed|skipped
)

// PipelineDuration records end-to-end intake latency.
var PipelineDuration = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Registration intake duration in seconds",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	},
)

// Relay metrics

// EmailsSent counts notification emails.
var EmailsSent = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "emails_sent_total",
		Help:      "Notification emails by recipient kind and outcome",
	},
	[]string{"kind", "outcome"}, // kind: organizer|participant, outcome: sent|failed|skipped
)

// RosterAppends counts legacy roster file writes.
var RosterAppends = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "roster_appends_total",
		Help:      "Legacy roster append attempts by outcome",
	},
	[]string{"outcome"}, // outcome: appended|conflict|failed
)

// RosterReads counts public roster and ranking reads by the tier that served them.
var RosterReads = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "roster_reads_total",
		Help:      "Public roster and ranking reads by view and source",
	},
	[]string{"view", "source"}, // source: store|legacy|error
)

// SettingsChanges counts writes to global settings.
var SettingsChanges = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settings_changes_total",
		Help:      "Global setting writes by key",
	},
	[]string{"key"},
)

// SettingsStreams tracks open settings event streams.
var SettingsStreams = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "settings_streams_open",
		Help:      "Number of open settings event streams",
	},
)

// Init registers runtime collectors and records build information.
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
