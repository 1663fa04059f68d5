package assets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"trackamole/internal/utils"
)

// Metrics counts loader outcomes.
type Metrics struct {
	loads     *prometheus.CounterVec
	cacheHits prometheus.Counter
}

// NewMetrics creates loader metrics and registers them on reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "trackamole",
			Subsystem: "assets",
			Name:      "loads_total",
			Help:      "Model loads that reached the network, by outcome.",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "trackamole",
			Subsystem: "assets",
			Name:      "cache_hits_total",
			Help:      "Model loads served from the parsed-asset cache.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.cacheHits)
	}
	return m
}

func (m *Metrics) observe(result string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
}

func (m *Metrics) hit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// LogCounters writes every counter gathered from g as one info line each,
// for processes that exit without being scraped.
func LogCounters(g prometheus.Gatherer, log *utils.Logger) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, fmt.Sprintf("%s=%q", lp.GetName(), lp.GetValue()))
			}
			sort.Strings(labels)
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			log.Infof("%s %g", name, m.GetCounter().GetValue())
		}
	}
	return nil
}
