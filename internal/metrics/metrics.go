package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "imagehub_queue_depth",
		Help: "Jobs currently waiting in the processing queue.",
	})

	ProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imagehub_images_processed_total",
		Help: "Images that reached a terminal status, by outcome.",
	}, []string{"status"})
)
