package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OffersDispatched = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "offers_dispatched_total", Help: "Total offers broadcast to the driver pool"})
	NotifyIntents    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "notify_intents_total", Help: "Total per-driver notification intents emitted"})
	AcceptsWon       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accepts_won_total", Help: "Total acceptances that won the offer"})
	AcceptConflicts  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accept_conflicts_total", Help: "Total acceptances that lost the race"})
	AcceptsRejected  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "accepts_rejected_total", Help: "Total acceptances rejected before the transition"},
		[]string{"reason"},
	)
	Completions     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "completions_total", Help: "Total offers marked completed by their driver"})
	PendingOffers   = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "pending_offers", Help: "Offers currently live in the store"})
	TelegramErrors  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "telegram_send_errors_total", Help: "Total failed Telegram deliveries"})
	DriversRegistry = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ride_dispatch", Name: "drivers_registered", Help: "Drivers known to the directory"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ride_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ride_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
