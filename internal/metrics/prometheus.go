package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	linkStatus      prometheus.Gauge
	connectAttempts *prometheus.CounterVec
	linkLost        prometheus.Counter
	activityUpdates *prometheus.CounterVec
}

// NewPrometheusRecorder registers the presence metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		linkStatus: factory.NewGauge(prometheus.GaugeOpts{
			Name: "presence_link_status",
			Help: "1 while a ready link to the chat client is current, 0 otherwise",
		}),
		connectAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_connect_attempts_total",
				Help: "Connection attempts by result",
			},
			[]string{"result"},
		),
		linkLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "presence_link_lost_total",
			Help: "Links torn down after a failed send",
		}),
		activityUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "presence_activity_updates_total",
				Help: "Activity set and clear requests by result",
			},
			[]string{"kind", "result"},
		),
	}
}

func (p *PrometheusRecorder) ObserveLinkStatus(up bool) {
	if up {
		p.linkStatus.Set(1)
		return
	}
	p.linkStatus.Set(0)
}

func (p *PrometheusRecorder) ObserveConnectAttempt(success bool) {
	p.connectAttempts.WithLabelValues(result(success)).Inc()
}

func (p *PrometheusRecorder) IncLinkLost() {
	p.linkLost.Inc()
}

func (p *PrometheusRecorder) ObserveActivityUpdate(kind string, success bool) {
	p.activityUpdates.WithLabelValues(kind, result(success)).Inc()
}
