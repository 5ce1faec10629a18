package challenge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	challengesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorum_challenges_issued",
		Help: "The number of challenges issued",
	}, []string{"scope", "required_prefix"})

	challengeReplays = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorum_challenge_replays",
		Help: "The number of begin requests answered from an op receipt",
	}, []string{"scope"})

	challengesValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chorum_challenges_validated",
		Help: "The number of commits checked, by result",
	}, []string{"scope", "result"})

	verifyTime = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chorum_proof_verify_time_seconds",
		Help:    "Time spent recomputing and checking a proof",
		Buckets: prometheus.ExponentialBuckets(0.000005, 2, 12),
	})
)
