package metrics

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/pure-golang/sheetmail/dispatch"
)

const namespace = "sheetmail"

// Config controls the end-of-run push. An empty PushURL disables it.
type Config struct {
	PushURL string        `envconfig:"METRICS_PUSH_URL"`
	Job     string        `envconfig:"METRICS_JOB" default:"sheetmail"`
	Timeout time.Duration `envconfig:"METRICS_PUSH_TIMEOUT" default:"10s"`
}

func (c Config) Enabled() bool {
	return c.PushURL != ""
}

// Recorder counts row outcomes. It is a dispatch.Reporter.
type Recorder struct {
	registry     *prometheus.Registry
	rows         *prometheus.CounterVec
	sendDuration prometheus.Histogram
	runs         *prometheus.CounterVec
}

var _ dispatch.Reporter = (*Recorder)(nil)

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed, by final state.",
		}, []string{"state"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Time spent handing one message to the SMTP server.",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs finished, by result.",
		}, []string{"result"}),
	}
	r.registry.MustRegister(r.rows, r.sendDuration, r.runs)

	// every state shows up in the push even when zero
	for _, s := range dispatch.States {
		r.rows.WithLabelValues(string(s))
	}
	return r
}

// Registry is the registry holding the run metrics. Pass it to
// InitPrometheus to add OTel and Go runtime metrics to the same push.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Report(_ context.Context, o dispatch.Outcome) {
	r.rows.WithLabelValues(string(o.State)).Inc()
	if o.SendDuration > 0 {
		r.sendDuration.Observe(o.SendDuration.Seconds())
	}
}

// Finish counts the run itself; err is what dispatch.Run returned.
func (r *Recorder) Finish(err error) {
	switch {
	case err == nil:
		r.runs.WithLabelValues("ok").Inc()
	case dispatch.IsConnection(err):
		r.runs.WithLabelValues("fetch_failed").Inc()
	default:
		r.runs.WithLabelValues("aborted").Inc()
	}
}

// Push sends everything in the registry to the Pushgateway, grouped by run id.
func (r *Recorder) Push(ctx context.Context, cfg Config, runID string) error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	p := push.New(cfg.PushURL, cfg.Job).Gatherer(r.registry)
	if runID != "" {
		p = p.Grouping("run_id", runID)
	}
	return errors.Wrapf(p.PushContext(ctx), "failed to push metrics to %s", cfg.PushURL)
}
