package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "sol_signal_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		SwapsAnalyzed:      promCounter{newCounter("swaps_analyzed_total", "Total number of swaps reconstructed from balance deltas.")},
		SwapsDegenerate:    promCounter{newCounter("swaps_degenerate_total", "Total number of swaps with no computable price.")},
		SwapsSkipped:       promCounter{newCounter("swaps_skipped_total", "Total number of swaps dropped by the tracker gate.")},
		PositionsOpened:    promCounter{newCounter("positions_opened_total", "Total number of positions opened in the book.")},
		PositionsClosed:    promCounter{newCounter("positions_closed_total", "Total number of positions fully closed.")},
		NoPositionSells:    promCounter{newCounter("no_position_sells_total", "Total number of sell fills with no position to reduce.")},
		ExitSignals:        promCounter{newCounter("exit_signals_total", "Total number of EXIT decisions published.")},
		EventsUnrecognized: promCounter{newCounter("events_unrecognized_total", "Total number of feed events that did not decode.")},
		PublishFailed:      promCounter{newCounter("publish_failed_total", "Total number of outbound publish failures.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
