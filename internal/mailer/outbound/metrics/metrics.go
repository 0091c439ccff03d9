package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shandysiswandi/gomailer/internal/mailer/entity"
)

// Metrics holds the mailer collectors.
type Metrics struct {
	sendsTotal   *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	jobsTotal    *prometheus.CounterVec
	enqueueTotal *prometheus.CounterVec
}

// New registers the collectors on reg, or on the default registerer when reg is nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		sendsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gomailer",
			Name:      "mail_sends_total",
			Help:      "Mail submissions by provider and result.",
		}, []string{"provider", "result"}),
		sendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gomailer",
			Name:      "mail_send_duration_seconds",
			Help:      "Time spent in the provider transport.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"provider"}),
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gomailer",
			Name:      "queue_jobs_total",
			Help:      "Consumed queue jobs by queue and outcome.",
		}, []string{"queue", "outcome"}),
		enqueueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gomailer",
			Name:      "queue_enqueued_total",
			Help:      "Published queue jobs by queue and result.",
		}, []string{"queue", "result"}),
	}

	for _, c := range []prometheus.Collector{m.sendsTotal, m.sendDuration, m.jobsTotal, m.enqueueTotal} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveSend(provider string, took time.Duration, err error) {
	m.sendsTotal.WithLabelValues(provider, result(err)).Inc()
	m.sendDuration.WithLabelValues(provider).Observe(took.Seconds())
}

func (m *Metrics) ObserveJob(queue string, outcome entity.Outcome) {
	m.jobsTotal.WithLabelValues(queue, outcome.String()).Inc()
}

func (m *Metrics) ObserveEnqueue(queue string, err error) {
	m.enqueueTotal.WithLabelValues(queue, result(err)).Inc()
}
