// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package accumulatorvm

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "accumulatorvm"

type metrics struct {
	calls       *prometheus.CounterVec
	actors      prometheus.Gauge
	entries     prometheus.Counter
	bytesPushed prometheus.Counter
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls",
			Help:      "Number of actor calls by method and exit code",
		}, []string{"method", "exit_code"}),
		actors: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actors",
			Help:      "Number of actors created",
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_pushed",
			Help:      "Number of entries appended to accumulators",
		}),
		bytesPushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_pushed",
			Help:      "Payload bytes appended to accumulators",
		}),
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.calls),
		registerer.Register(m.actors),
		registerer.Register(m.entries),
		registerer.Register(m.bytesPushed),
	)
	return m, errs.Err
}
