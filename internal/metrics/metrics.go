package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ForecastFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_forecast_fetches_total",
			Help: "Total forecast API fetches",
		},
		[]string{"kind", "status"},
	)

	ForecastFetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skycast_forecast_fetch_latency_seconds",
			Help:    "Forecast API fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	GeocodeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_geocode_requests_total",
			Help: "Total geocoding API requests",
		},
		[]string{"endpoint", "status"},
	)

	AlertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_alerts_fired_total",
			Help: "Total alerts fired by the rule engine",
		},
		[]string{"rule", "context"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_notifications_sent_total",
			Help: "Total native notification dispatch attempts",
		},
		[]string{"status"},
	)

	BackgroundRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skycast_background_runs_total",
			Help: "Total background weather-update runs",
		},
		[]string{"status"},
	)
)
