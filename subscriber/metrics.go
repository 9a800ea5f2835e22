package subscriber

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatestHeadBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facilitator",
		Subsystem: "subscriber",
		Name:      "latest_head_block",
	}, []string{"chain_id", "address"})

	LatestFetchedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facilitator",
		Subsystem: "subscriber",
		Name:      "latest_fetched_block",
	}, []string{"chain_id", "address"})

	LatestProcessedBlock = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "facilitator",
		Subsystem: "subscriber",
		Name:      "latest_processed_block",
	}, []string{"chain_id", "address"})
)
