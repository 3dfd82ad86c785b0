package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codesRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_codes_requested_total",
		Help: "One-time codes generated and stored, by purpose and delivery channel",
	}, []string{"purpose", "channel"})

	codesVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_codes_verified_total",
		Help: "One-time code verification attempts by result",
	}, []string{"result"})

	deliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otp_delivery_failures_total",
		Help: "One-time codes stored but not delivered",
	}, []string{"channel"})

	codesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otp_codes_swept_total",
		Help: "Expired one-time code records removed by the sweeper",
	})
)
