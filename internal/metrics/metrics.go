package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/dfalcao/precario/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics

	SurveyPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "survey_pickup_latency_seconds",
		Help:      "Time from survey creation to a worker claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	SurveyDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "survey_duration_seconds",
		Help:      "Duration of one full price search.",
		Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	SurveysInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "precario",
		Name:      "worker_surveys_in_flight",
		Help:      "Number of surveys currently being processed by the worker.",
	})

	SurveysCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "surveys_completed_total",
		Help:      "Total surveys finished, by outcome.",
	}, []string{"outcome"})

	// Search-core metrics

	CandidateValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "candidate_validations_total",
		Help:      "Candidate validations by result: valid or the failure reason.",
	}, []string{"result"})

	ToleranceEscalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "tolerance_escalations_total",
		Help:      "Tolerance-ceiling escalations across all searches.",
	})

	SearchBlocksTried = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "search_blocks_tried",
		Help:      "Blocks validated before one search terminated.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13, 21},
	})

	ExtractionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "price_extraction_duration_seconds",
		Help:      "Duration of one headless-browser or static price extraction.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"mode", "status"})

	// Reaper metrics

	ReaperRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "reaper_rescued_total",
		Help:      "Total stale surveys handled by the reaper.",
	}, []string{"action"})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper cycle.",
		Buckets:   prometheus.DefBuckets,
	})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "precario",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker has shut down.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "precario",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "precario",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		SurveyPickupLatency,
		SurveyDuration,
		SurveysInFlight,
		SurveysCompletedTotal,
		CandidateValidationsTotal,
		ToleranceEscalationsTotal,
		SearchBlocksTried,
		ExtractionDuration,
		ReaperRescuedTotal,
		ReaperCycleDuration,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer exposes /metrics plus liveness and readiness endpoints on the
// internal port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
