package obs

import "github.com/prometheus/client_golang/prometheus"

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Bloodnet API build information.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo sets build_info{version,commit} to 1. Init must have run for
// the gauge to be exported.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
