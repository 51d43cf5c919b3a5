// Package metrics exposes Prometheus collectors for the ledger engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	giftsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "gifts",
			Name:      "created_total",
			Help:      "Total number of gifts created.",
		},
	)

	giftsClaimed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "gifts",
			Name:      "claimed_total",
			Help:      "Total number of gift claims, by whether the gift was also opened.",
		},
		[]string{"opened"},
	)

	cardsAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "cards",
			Name:      "added_total",
			Help:      "Total number of cards added to the marketplace.",
		},
	)

	cardUses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "cards",
			Name:      "uses_total",
			Help:      "Total number of card uses settled, by fee token.",
		},
		[]string{"fee_token"},
	)

	trades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "oracle",
			Name:      "trades_total",
			Help:      "Total number of oracle trades executed, by output token.",
		},
		[]string{"token_out"},
	)

	withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "ledger",
			Name:      "withdrawals_total",
			Help:      "Total number of ledger withdrawals, by kind (tax or earnings).",
		},
		[]string{"kind"},
	)

	registryCuts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sendgft",
			Subsystem: "registry",
			Name:      "cuts_total",
			Help:      "Total number of registry cut batches, by outcome.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		giftsCreated,
		giftsClaimed,
		cardsAdded,
		cardUses,
		trades,
		withdrawals,
		registryCuts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveGiftCreated increments the gift creation counter.
func ObserveGiftCreated() { giftsCreated.Inc() }

// ObserveGiftClaimed increments the claim counter.
func ObserveGiftClaimed(opened bool) {
	if opened {
		giftsClaimed.WithLabelValues("true").Inc()
	} else {
		giftsClaimed.WithLabelValues("false").Inc()
	}
}

// ObserveCardAdded increments the card registration counter.
func ObserveCardAdded() { cardsAdded.Inc() }

// ObserveCardUsed increments the card use counter for a fee token.
func ObserveCardUsed(feeToken string) { cardUses.WithLabelValues(feeToken).Inc() }

// ObserveTrade increments the trade counter for an output token.
func ObserveTrade(tokenOut string) { trades.WithLabelValues(tokenOut).Inc() }

// ObserveWithdrawal increments the withdrawal counter for a kind.
func ObserveWithdrawal(kind string) { withdrawals.WithLabelValues(kind).Inc() }

// ObserveCut increments the registry cut counter for an outcome.
func ObserveCut(status string) { registryCuts.WithLabelValues(status).Inc() }
