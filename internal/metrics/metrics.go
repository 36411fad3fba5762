package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatbot"

var (
	// extractions counts extraction results by the strategy that produced them.
	// Labels: method (tool_call, pattern)
	extractions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "extraction",
		Name:      "results_total",
		Help:      "Extraction results by strategy",
	}, []string{"method"})

	followUps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "followup",
		Name:      "generated_total",
		Help:      "Follow-up suggestion sets by source and stage",
	}, []string{"source", "stage"})

	retrievalConfidence = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "retrieval",
		Name:      "confidence",
		Help:      "Distribution of overall retrieval confidence",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"domain"})

	stages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "stage_total",
		Help:      "Turns by classified stage",
	}, []string{"stage"})

	// turns counts streamed turns.
	// Labels: domain, status (completed, aborted, failed)
	turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "turns_total",
		Help:      "Streamed turns by outcome",
	}, []string{"domain", "status"})

	turnLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "turn_duration_seconds",
		Help:      "Time from request to the end of the streamed reply",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
	}, []string{"domain"})

	conversions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conversation",
		Name:      "conversions_total",
		Help:      "Sessions marked as converted",
	})
)

// Turn outcomes.
const (
	TurnCompleted = "completed"
	TurnAborted   = "aborted"
	TurnFailed    = "failed"
)

func RecordExtraction(method string) {
	extractions.WithLabelValues(method).Inc()
}

func RecordFollowUps(source, stage string) {
	followUps.WithLabelValues(source, stage).Inc()
}

func RecordRetrievalConfidence(domain string, overall float64) {
	retrievalConfidence.WithLabelValues(domain).Observe(overall)
}

func RecordStage(stage string) {
	stages.WithLabelValues(stage).Inc()
}

// RecordTurn counts a turn and, for completed ones, observes its duration.
func RecordTurn(domain, status string, durationSec float64) {
	turns.WithLabelValues(domain, status).Inc()
	if status == TurnCompleted {
		turnLatency.WithLabelValues(domain).Observe(durationSec)
	}
}

func RecordConversion() {
	conversions.Inc()
}

// Handler exposes the default registry on a fiber route.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
