package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "ecovolt_"

	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	claimsTotal        *prometheus.CounterVec
	releasesTotal      *prometheus.CounterVec
	capacityViolations prometheus.Counter

	reservationsTotal *prometheus.CounterVec
	reserveLatency    *prometheus.HistogramVec
	transitionsTotal  *prometheus.CounterVec
	compensations     *prometheus.CounterVec

	sweepRuns  *prometheus.CounterVec
	sweptTotal *prometheus.CounterVec

	kafkaMessages *prometheus.CounterVec
	kafkaLatency  *prometheus.HistogramVec
)

// Init registers every collector with the default registry. Safe to call
// more than once; helpers are no-ops until Init has run.
func Init() {
	registerOnce.Do(func() {
		httpRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_requests_total",
				Help: "Total HTTP requests by method and status",
			},
			[]string{"method", "status"},
		)
		httpLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		)

		claimsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_claims_total",
				Help: "Claim attempts by result",
			},
			[]string{"result"},
		)
		releasesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "inventory_releases_total",
				Help: "Claim releases by result",
			},
			[]string{"result"},
		)
		capacityViolations = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "capacity_violations_total",
				Help: "Availability updates rejected for breaking station bounds outside a normal claim",
			},
		)

		reservationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservations_total",
				Help: "Reserve calls by outcome",
			},
			[]string{"outcome"},
		)
		reserveLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reserve_latency_seconds",
				Help:    "Reserve latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)
		transitionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservation_transitions_total",
				Help: "Reservation status transitions by target status",
			},
			[]string{"to"},
		)
		compensations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reservation_compensations_total",
				Help: "Compensating releases after a failed reserve by result",
			},
			[]string{"result"},
		)

		sweepRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweeper_runs_total",
				Help: "Background sweep passes by job and result",
			},
			[]string{"job", "result"},
		)
		sweptTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sweeper_items_total",
				Help: "Reservations and claims handled by the sweeper",
			},
			[]string{"kind"},
		)

		kafkaMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "kafka_messages_total",
				Help: "Kafka messages by direction, topic and result",
			},
			[]string{"direction", "topic", "result"},
		)
		kafkaLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "kafka_message_duration_seconds",
				Help:    "Kafka publish and handle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		)

		prometheus.MustRegister(
			httpRequests,
			httpLatency,
			claimsTotal,
			releasesTotal,
			capacityViolations,
			reservationsTotal,
			reserveLatency,
			transitionsTotal,
			compensations,
			sweepRuns,
			sweptTotal,
			kafkaMessages,
			kafkaLatency,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveHTTP(method string, status int, duration time.Duration) {
	if httpRequests != nil {
		httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	}
	if httpLatency != nil {
		httpLatency.WithLabelValues(method).Observe(duration.Seconds())
	}
}

func IncClaim(result string) {
	if claimsTotal != nil {
		claimsTotal.WithLabelValues(result).Inc()
	}
}

func IncRelease(result string) {
	if releasesTotal != nil {
		releasesTotal.WithLabelValues(result).Inc()
	}
}

func IncCapacityViolation() {
	if capacityViolations != nil {
		capacityViolations.Inc()
	}
}

func ObserveReserve(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = ResultSuccess
	}
	if reservationsTotal != nil {
		reservationsTotal.WithLabelValues(outcome).Inc()
	}
	if reserveLatency != nil {
		reserveLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

func IncTransition(to string) {
	if transitionsTotal != nil {
		transitionsTotal.WithLabelValues(to).Inc()
	}
}

func IncCompensation(result string) {
	if compensations != nil {
		compensations.WithLabelValues(result).Inc()
	}
}

func IncSweepRun(job, result string) {
	if sweepRuns != nil {
		sweepRuns.WithLabelValues(job, result).Inc()
	}
}

func AddSwept(kind string, count int) {
	if count <= 0 {
		return
	}
	if sweptTotal != nil {
		sweptTotal.WithLabelValues(kind).Add(float64(count))
	}
}

func ObserveKafka(direction, topic, result string, duration time.Duration) {
	if kafkaMessages != nil {
		kafkaMessages.WithLabelValues(direction, topic, result).Inc()
	}
	if kafkaLatency != nil {
		kafkaLatency.WithLabelValues(direction).Observe(duration.Seconds())
	}
}
