package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tutor",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"route", "status"})

	chatStreamsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tutor",
		Name:      "chat_streams_active",
		Help:      "Open status streams.",
	})
)
