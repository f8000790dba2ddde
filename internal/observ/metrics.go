package observ

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AlertsPolled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trader_alerts_polled_total",
		Help: "Raw alerts fetched from the chat channel"})
	AlertsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trader_alerts_processed_total",
		Help: "Alerts handed to the decision engine"})
	AlertsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_alerts_skipped_total",
		Help: "Alerts discarded before an order, by gate"},
		[]string{"reason"})
	OrdersSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_orders_submitted_total",
		Help: "Orders handed to the broker gateway, by kind"},
		[]string{"kind"})
	OrderFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trader_order_failures_total",
		Help: "Gateway submissions that returned an error"})
	TrailExits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trader_trail_exits_total",
		Help: "Supervised positions closed by the risk manager, by reason"},
		[]string{"reason"})
	ActiveTrails = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "trader_active_trails",
		Help: "Positions currently supervised by the risk manager"})
)

func init() {
	prometheus.MustRegister(
		AlertsPolled,
		AlertsProcessed,
		AlertsSkipped,
		OrdersSubmitted,
		OrderFailures,
		TrailExits,
		ActiveTrails,
	)
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
