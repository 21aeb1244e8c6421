// Package metrics exposes prometheus counters for the wallet-auth flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification result labels.
const (
	ResultConnected        = "connected"
	ResultInvalidSignature = "invalid_signature"
	ResultNonceRejected    = "nonce_rejected"
	ResultUserNotFound     = "user_not_found"
	ResultError            = "error"
)

var (
	// ChallengesIssued counts nonce challenges handed out, including
	// idempotent repeats of a live challenge.
	ChallengesIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "walletauth",
		Name:      "challenges_issued_total",
		Help:      "Number of SIWE challenges issued.",
	})

	// Verifications counts verify-and-connect attempts by outcome.
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "walletauth",
		Name:      "verifications_total",
		Help:      "Number of wallet verification attempts by result.",
	}, []string{"result"})
)
