package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutSessionTotal counts checkout attempts by outcome.
	CheckoutSessionTotal *prometheus.CounterVec
	// CheckoutVendorGroups records how many vendor groups one checkout produced.
	CheckoutVendorGroups prometheus.Histogram
	// SplitPaymentInitTotal counts gateway split transaction initialisations.
	SplitPaymentInitTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// PlatformFeeKobo accumulates the platform's retained fee in minor units.
	PlatformFeeKobo prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutSessionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_session_total",
			Help:      "Count of checkout session attempts by outcome.",
		}, []string{"result"})
		CheckoutVendorGroups = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_vendor_groups",
			Help:      "Vendor groups produced per checkout session.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13},
		})
		SplitPaymentInitTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "split_payment_init_total",
			Help:      "Count of split transaction initialisations by outcome.",
		}, []string{"provider", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		PlatformFeeKobo = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_fee_kobo_total",
			Help:      "Platform fee retained across paid orders, in kobo.",
		})

		mustRegisterCollector(reg, CheckoutSessionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutSessionTotal = v
			}
		})
		mustRegisterCollector(reg, CheckoutVendorGroups, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				CheckoutVendorGroups = v
			}
		})
		mustRegisterCollector(reg, SplitPaymentInitTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SplitPaymentInitTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, PlatformFeeKobo, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PlatformFeeKobo = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
