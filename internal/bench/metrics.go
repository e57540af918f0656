package bench

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Recorder collects acquisition metrics on a private registry.
// A nil *Recorder records nothing.
type Recorder struct {
	reg      *prometheus.Registry
	wait     *prometheus.HistogramVec
	acquired *prometheus.CounterVec
}

// NewRecorder returns a Recorder with its metrics registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pflock",
			Name:      "acquire_wait_seconds",
			Help:      "Time spent spinning before a lock was granted.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 14),
		}, []string{"mode", "layout"}),
		acquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pflock",
			Name:      "acquisitions_total",
			Help:      "Number of granted lock acquisitions.",
		}, []string{"mode", "layout"}),
	}
	r.reg.MustRegister(r.wait, r.acquired)
	return r
}

func (r *Recorder) observe(mode Mode, layout Layout, d time.Duration) {
	if r == nil {
		return
	}
	r.wait.WithLabelValues(string(mode), string(layout)).Observe(d.Seconds())
	r.acquired.WithLabelValues(string(mode), string(layout)).Inc()
}

// WriteText writes all recorded metrics to w in the Prometheus text
// exposition format.
func (r *Recorder) WriteText(w io.Writer) error {
	mfs, err := r.reg.Gather()
	if err != nil {
		return fmt.Errorf("could not gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("could not encode metric %v: %w", mf.GetName(), err)
		}
	}
	if closer, ok := enc.(expfmt.Closer); ok {
		if err := closer.Close(); err != nil {
			return err
		}
	}
	return nil
}
