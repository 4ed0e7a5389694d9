package moviedex

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// instruments are the SDK collectors; operations are labeled "search", "add", "seed", "task", "ping".
type instruments struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

func newInstruments(reg prometheus.Registerer) (*instruments, error) {
	in := &instruments{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "moviedex",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by type and status.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "moviedex",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
	var err error
	if in.calls, err = adopt(reg, in.calls); err != nil {
		return nil, err
	}
	if in.latency, err = adopt(reg, in.latency); err != nil {
		return nil, err
	}
	return in, nil
}

// adopt registers c, or returns the collector an earlier Client already registered.
func adopt[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("moviedex: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("moviedex: metric registered with type %T", are.ExistingCollector)
	}
	return existing, nil
}

// observer reports SDK calls to slog and prometheus. Both sinks are optional.
type observer struct {
	logger *slog.Logger
	inst   *instruments
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		inst, err := newInstruments(reg)
		if err != nil {
			return nil, err
		}
		o.inst = inst
	}
	return o, nil
}

// track starts timing op; call the returned func with the named error result:
//
//	defer c.obs.track("search")(&err)
func (o *observer) track(op string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		if o == nil {
			return
		}
		var err error
		if errp != nil {
			err = *errp
		}
		o.report(op, time.Since(start), err)
	}
}

func (o *observer) report(op string, took time.Duration, err error) {
	if o.inst != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		o.inst.calls.WithLabelValues(op, status).Inc()
		o.inst.latency.WithLabelValues(op).Observe(took.Seconds())
	}

	switch {
	case o.logger == nil:
	case err != nil:
		o.logger.Warn("moviedex call failed", "op", op, "took", took, "error", err)
	default:
		o.logger.Debug("moviedex call done", "op", op, "took", took)
	}
}
