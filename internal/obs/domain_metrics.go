package obs

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics groups business-level collectors for the pricing service.
type DomainMetrics struct {
	QuotesComputed     *prometheus.CounterVec
	RedemptionsClamped prometheus.Counter
	DefaultsRepaired   prometheus.Counter
}

// NewDomainMetrics registers and returns pricing domain collectors.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		QuotesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_computed_total",
			Help:      "Quotes computed, labelled by membership tier and redemption outcome.",
		}, []string{"tier", "redemption"}),
		RedemptionsClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redemptions_clamped_total",
			Help:      "Redemption requests reduced to the per-quote coin cap.",
		}),
		DefaultsRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "address_defaults_repaired_total",
			Help:      "Address books repaired back to a single default address.",
		}),
	}
	m.QuotesComputed = registerCounterVec(reg, m.QuotesComputed)
	m.RedemptionsClamped = registerCounter(reg, m.RedemptionsClamped)
	m.DefaultsRepaired = registerCounter(reg, m.DefaultsRepaired)
	return m
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
