package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the business counters. A nil *Metrics records nothing.
type Metrics struct {
	otpSent         *prometheus.CounterVec
	otpVerified     *prometheus.CounterVec
	purchases       *prometheus.CounterVec
	paymentUpdates  *prometheus.CounterVec
	expiredPackages prometheus.Counter
	sweepDuration   prometheus.Histogram
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		otpSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "otp_sent_total",
			Help:      "OTP send attempts by purpose and result",
		}, []string{"purpose", "result"}),
		otpVerified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "otp_verified_total",
			Help:      "OTP verification attempts by purpose and result",
		}, []string{"purpose", "result"}),
		purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "package_purchases_total",
			Help:      "Package purchase attempts by result",
		}, []string{"result"}),
		paymentUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "payment_status_updates_total",
			Help:      "Payment status updates by new status",
		}, []string{"status"}),
		expiredPackages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "clinic",
			Name:      "expired_packages_total",
			Help:      "User packages deactivated by the expiry sweep",
		}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinic",
			Name:      "expiry_sweep_duration_seconds",
			Help:      "Duration of expiry sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeOTPSent(purpose string, err error) {
	if m == nil {
		return
	}
	m.otpSent.WithLabelValues(purpose, resultLabel(err)).Inc()
}

func (m *Metrics) observeOTPVerified(purpose string, err error) {
	if m == nil {
		return
	}
	m.otpVerified.WithLabelValues(purpose, resultLabel(err)).Inc()
}

func (m *Metrics) observePurchase(err error) {
	if m == nil {
		return
	}
	m.purchases.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observePaymentUpdate(status string) {
	if m == nil {
		return
	}
	m.paymentUpdates.WithLabelValues(status).Inc()
}

func (m *Metrics) observeSweep(expired int64, seconds float64) {
	if m == nil {
		return
	}
	m.expiredPackages.Add(float64(expired))
	m.sweepDuration.Observe(seconds)
}

func resultLabel(err error) string {
	if err == nil {
		return "success"
	}
	if kind := KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
