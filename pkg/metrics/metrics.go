package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Subsystem prefixes every collector registered by this service.
const Subsystem = "offertory"

var HistogramBuckets = []float64{
	// fast responses (0 - 500ms)
	25, 50, 75, 100, 150, 200, 300, 400, 500,

	// gateway round trips (500ms - 2s)
	750, 1000, 1250, 1500, 1750, 2000,

	// slow gateway calls and job passes (2s - 60s)
	2500, 3000, 4000, 5000, 7500, 10000, 15000, 20000, 30000, 60000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	var metric prometheus.Collector
	switch m.Type {
	case "counter_vec":
		metric = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	case "counter":
		metric = prometheus.NewCounter(
			prometheus.CounterOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
		)
	case "histogram_vec":
		metric = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
				Buckets:   HistogramBuckets,
			},
			m.Args,
		)
	case "summary_vec":
		metric = prometheus.NewSummaryVec(
			prometheus.SummaryOpts{
				Subsystem: subsystem,
				Name:      m.Name,
				Help:      m.Description,
			},
			m.Args,
		)
	}
	m.MetricCollector = metric
	return metric
}

var MetricsWebhookEvents = &Metric{
	ID:          "webhookEvents",
	Name:        "webhook_events_total",
	Description: "Webhook deliveries by provider, scope and outcome.",
	Type:        "counter_vec",
	Args:        []string{"provider", "scope", "outcome"},
}

var MetricsCheckouts = &Metric{
	ID:          "checkouts",
	Name:        "checkouts_total",
	Description: "Checkout attempts by purpose, provider and outcome.",
	Type:        "counter_vec",
	Args:        []string{"purpose", "provider", "outcome"},
}

var MetricsJobItems = &Metric{
	ID:          "jobItems",
	Name:        "job_items_total",
	Description: "Entities visited by billing jobs, by job and result.",
	Type:        "counter_vec",
	Args:        []string{"job", "result"},
}

var MetricsBusinessProcess = &Metric{
	ID:          "bpDur",
	Name:        "bp_dur_ms",
	Description: "process latency in milliseconds",
	Type:        "histogram_vec",
	Args:        []string{"type", "subtype"},
}

var (
	webhookEvents   = NewMetric(MetricsWebhookEvents, Subsystem).(*prometheus.CounterVec)
	checkouts       = NewMetric(MetricsCheckouts, Subsystem).(*prometheus.CounterVec)
	jobItems        = NewMetric(MetricsJobItems, Subsystem).(*prometheus.CounterVec)
	businessProcess = NewMetric(MetricsBusinessProcess, Subsystem).(*prometheus.HistogramVec)
)

func init() {
	prometheus.MustRegister(webhookEvents, checkouts, jobItems, businessProcess)
}

// Webhook outcomes.
const (
	OutcomeProcessed        = "processed"
	OutcomeDuplicate        = "duplicate"
	OutcomeFailed           = "failed"
	OutcomeInvalidSignature = "invalid_signature"
	OutcomeOK               = "ok"
	OutcomeRejected         = "rejected"
	OutcomeGatewayError     = "gateway_error"
)

func ObserveWebhook(provider, scope, outcome string) {
	webhookEvents.WithLabelValues(provider, scope, outcome).Inc()
}

func ObserveCheckout(purpose, provider, outcome string) {
	checkouts.WithLabelValues(purpose, provider, outcome).Inc()
}

// ObserveJob records one pass of job: changed, skipped and failed item counts.
func ObserveJob(job string, changed, skipped, failed int) {
	jobItems.WithLabelValues(job, "changed").Add(float64(changed))
	jobItems.WithLabelValues(job, "skipped").Add(float64(skipped))
	jobItems.WithLabelValues(job, "failed").Add(float64(failed))
}

// Since observes the duration of a business step started at start.
//
//	defer metrics.Since("webhook", "stripe", time.Now())
func Since(typ, subtype string, start time.Time) {
	businessProcess.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

const (
	RefererKey = "X-Referer"
)
