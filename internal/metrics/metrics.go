package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"

	OpRead  = "read"
	OpWrite = "write"
)

var (
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatzy_logins_total",
			Help: "Login attempts against the Gizwits cloud by result.",
		},
		[]string{"result"},
	)

	RemoteRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heatzy_remote_requests_total",
			Help: "Device read/write requests by operation and result.",
		},
		[]string{"op", "result"},
	)

	StateChanges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "heatzy_state_changes_total",
			Help: "Switch state changes observed by reconciliation.",
		},
	)

	SwitchOn = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "heatzy_switch_on",
			Help: "Last known switch state (1 on, 0 off).",
		},
	)
)

func init() {
	prometheus.MustRegister(Logins, RemoteRequests, StateChanges, SwitchOn)
}

// Result maps an error to the result label value.
func Result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func SetSwitchOn(on bool) {
	if on {
		SwitchOn.Set(1)
		return
	}
	SwitchOn.Set(0)
}

func Handler() http.Handler { return promhttp.Handler() }
