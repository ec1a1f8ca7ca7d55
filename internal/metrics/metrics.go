package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "todo_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.3, 1},
		},
		[]string{"method", "route"},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_commands_total",
			Help: "Commands handled, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "todo_reminders_delivered_total",
			Help: "Reminder notifications delivered, by channel",
		},
		[]string{"channel"},
	)
)

// UnmatchedRoute labels requests that matched no registered route.
const UnmatchedRoute = "unmatched"

// ObserveRequest records one request. route must be the matched route
// pattern, never the raw path, so label cardinality stays bounded.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = UnmatchedRoute
	}
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func CommandOutcome(action, outcome string) {
	switch action {
	case "create", "update", "delete", "toggle_status":
	default:
		action = "unknown"
	}
	commandsTotal.WithLabelValues(action, outcome).Inc()
}

func ReminderDelivered(channel string) {
	remindersTotal.WithLabelValues(channel).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
