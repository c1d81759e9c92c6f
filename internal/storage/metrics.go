package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacestore_doc_updates_pushed_total",
		Help: "the number of doc updates appended to the update log",
	})
	updatesMerged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacestore_doc_updates_merged_total",
		Help: "the number of doc updates retired after snapshot compaction",
	})
	snapshotsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacestore_doc_snapshots_stored_total",
		Help: "the number of doc snapshots accepted by the store",
	})
	blobBytesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacestore_blob_bytes_stored_total",
		Help: "the number of blob payload bytes written",
	})
	blobsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spacestore_blobs_released_total",
		Help: "the number of soft-deleted blobs reclaimed by vacuum",
	})
)
