package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"trueshuffle/internal/core"
)

// Metrics holds the service collectors. It implements queue.Recorder.
type Metrics struct {
	SubmittedTotal     *prometheus.CounterVec
	RejectedTotal      *prometheus.CounterVec
	ExpiredTotal       *prometheus.CounterVec
	FinishedTotal      *prometheus.CounterVec
	TaskDuration       *prometheus.HistogramVec
	TracksWrittenTotal *prometheus.CounterVec
	QueueDepthGauge    prometheus.Gauge
	RateLimitedTotal   *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_tasks_submitted_total",
				Help: "Total number of tasks accepted into the queue",
			},
			[]string{"kind"},
		),
		RejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_tasks_rejected_total",
				Help: "Total number of task submissions rejected",
			},
			[]string{"kind", "reason"},
		),
		ExpiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_tasks_expired_total",
				Help: "Total number of tasks that expired before a worker picked them up",
			},
			[]string{"kind"},
		),
		FinishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_tasks_finished_total",
				Help: "Total number of tasks that ran to a terminal state",
			},
			[]string{"kind", "state"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trueshuffle_task_duration_seconds",
				Help:    "Time spent running a task",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		TracksWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_tracks_written_total",
				Help: "Total number of tracks written into created playlists",
			},
			[]string{"kind"},
		),
		QueueDepthGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trueshuffle_queue_depth",
				Help: "Number of tasks waiting for a worker",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trueshuffle_rate_limited_total",
				Help: "Total number of submissions blocked by the rate limit",
			},
			[]string{"kind"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trueshuffle_http_request_duration_seconds",
				Help:    "Time spent serving HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "code", "method"},
		),
	}

	reg.MustRegister(
		m.SubmittedTotal,
		m.RejectedTotal,
		m.ExpiredTotal,
		m.FinishedTotal,
		m.TaskDuration,
		m.TracksWrittenTotal,
		m.QueueDepthGauge,
		m.RateLimitedTotal,
		m.RequestDuration,
	)

	return m
}

func (m *Metrics) TaskSubmitted(kind core.TaskKind) {
	m.SubmittedTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) TaskRejected(kind core.TaskKind, reason string) {
	m.RejectedTotal.WithLabelValues(string(kind), reason).Inc()
}

func (m *Metrics) TaskExpired(kind core.TaskKind) {
	m.ExpiredTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) TaskFinished(kind core.TaskKind, state core.TaskState, duration time.Duration) {
	m.FinishedTotal.WithLabelValues(string(kind), string(state)).Inc()
	m.TaskDuration.WithLabelValues(string(kind)).Observe(duration.Seconds())
}

func (m *Metrics) TracksWritten(kind core.TaskKind, count int) {
	m.TracksWrittenTotal.WithLabelValues(string(kind)).Add(float64(count))
}

func (m *Metrics) QueueDepth(depth int) {
	m.QueueDepthGauge.Set(float64(depth))
}

func (m *Metrics) RecordRateLimited(kind core.TaskKind) {
	m.RateLimitedTotal.WithLabelValues(string(kind)).Inc()
}
