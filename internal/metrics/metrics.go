package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrv_review_decisions_total",
			Help: "Review decisions by outcome",
		},
		[]string{"decision"},
	)

	DecisionConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrv_review_version_conflicts_total",
			Help: "Updates rejected by the optimistic version check",
		},
	)

	IssuanceEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrv_issuance_requests_enqueued_total",
			Help: "Credit issuance requests written to the outbox",
		},
	)

	IssuancePublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mrv_issuance_requests_published_total",
			Help: "Credit issuance requests delivered to the minting topic",
		},
	)

	CalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mrv_credit_calculations_total",
			Help: "Credit calculations by methodology",
		},
		[]string{"methodology"},
	)
)

func init() {
	prometheus.MustRegister(
		DecisionsTotal,
		DecisionConflicts,
		IssuanceEnqueued,
		IssuancePublished,
		CalculationsTotal,
	)
}

// Handler exposes the prometheus scrape endpoint as a gin handler
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
