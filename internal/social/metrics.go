package social

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	peopleUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialgraph_people_upserted_total",
		Help: "Person nodes upserted into the graph store",
	})

	// Labels: "created", "missing_endpoint", "duplicate", "existing", "rejected"
	connectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_connections_total",
		Help: "Connection records processed by outcome",
	}, []string{"result"})

	peopleRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "socialgraph_people_rejected_total",
		Help: "Person records rejected by validation",
	})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "socialgraph_ingest_duration_seconds",
		Help:    "Wall time of one ingestion run",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
	})

	// Labels: PathStatus values plus "error"
	pathQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "socialgraph_path_queries_total",
		Help: "Shortest path queries by result status",
	}, []string{"status"})
)
