package services

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 每个实例一个 registry，测试中可以重复创建
type Metrics struct {
	registry *prometheus.Registry

	VotesCast     prometheus.Counter
	VotesRetract  prometheus.Counter
	VoteErrors    *prometheus.CounterVec
	VoteDuration  prometheus.Histogram
	CounterDrifts prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		VotesCast: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcase_votes_cast_total",
			Help: "Votes cast through the toggle endpoint",
		}),
		VotesRetract: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcase_votes_retracted_total",
			Help: "Votes retracted through the toggle endpoint",
		}),
		VoteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcase_vote_errors_total",
			Help: "Rejected or failed toggles by error code",
		}, []string{"code"}),
		VoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "showcase_vote_duration_seconds",
			Help:    "Toggle transaction latency",
			Buckets: prometheus.DefBuckets,
		}),
		CounterDrifts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcase_counter_drift_projects",
			Help: "Projects whose vote_count differs from their vote rows at the last check",
		}),
	}
	m.registry.MustRegister(
		m.VotesCast,
		m.VotesRetract,
		m.VoteErrors,
		m.VoteDuration,
		m.CounterDrifts,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
