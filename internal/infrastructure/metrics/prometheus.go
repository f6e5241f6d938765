// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "fileonline"

var (
	// CacheOperationsTotal tracks cache operations (get, set, delete).
	// Labels:
	//   - operation: get, set, delete
	//   - status: hit, miss, success, error
	//   - cache_type: redis
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_operations_total",
			Help:      "Total number of cache operations",
		},
		[]string{"operation", "status", "cache_type"},
	)

	// DBQueriesTotal tracks database queries.
	// Labels:
	//   - query_type: select, insert, update
	//   - table: transcode_jobs, storage_settings
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "db_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"query_type", "table"},
	)

	// SingleflightRequestsTotal tracks singleflight behavior.
	// Labels:
	//   - result: initiated (new execution), shared (reused result)
	SingleflightRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "singleflight_requests_total",
			Help:      "Total number of singleflight requests",
		},
		[]string{"result"},
	)

	// StorageOperationsTotal tracks object store calls.
	// Labels:
	//   - operation: put, open, delete, url
	//   - backend: local, remote
	//   - status: success, error
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of object store operations",
		},
		[]string{"operation", "backend", "status"},
	)

	// TokenVerificationsTotal tracks capability token checks.
	// Labels:
	//   - result: valid, missing, invalid, expired, revoked, error
	TokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "token_verifications_total",
			Help:      "Total number of capability token verifications",
		},
		[]string{"result"},
	)

	// DeliveryRequestsTotal tracks gateway responses.
	// Labels:
	//   - backend: local, remote, none
	//   - code: HTTP status code
	DeliveryRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delivery_requests_total",
			Help:      "Total number of delivery gateway responses",
		},
		[]string{"backend", "code"},
	)

	// DeliveryBytesTotal counts body bytes written by the gateway.
	DeliveryBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "delivery_bytes_total",
			Help:      "Total number of body bytes served by the delivery gateway",
		},
		[]string{"backend"},
	)

	// TranscodeJobsTotal tracks terminal job outcomes.
	// Labels:
	//   - status: ready, failed, skipped
	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "transcode_jobs_total",
			Help:      "Total number of transcode jobs by outcome",
		},
		[]string{"status"},
	)

	// TranscodeDuration observes end-to-end job time.
	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "transcode_duration_seconds",
			Help:      "Transcode job duration from claim to terminal state",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
	)
)

// Cache operation status constants.
const (
	CacheStatusHit     = "hit"
	CacheStatusMiss    = "miss"
	CacheStatusSuccess = "success"
	CacheStatusError   = "error"
)

// Cache operation type constants.
const (
	CacheOpGet    = "get"
	CacheOpSet    = "set"
	CacheOpDelete = "delete"
)

// Cache type constants.
const (
	CacheTypeRedis = "redis"
)

// DB query type constants.
const (
	DBQuerySelect = "select"
	DBQueryInsert = "insert"
	DBQueryUpdate = "update"
)

// Table name constants.
const (
	TableTranscodeJobs   = "transcode_jobs"
	TableStorageSettings = "storage_settings"
)

// Singleflight result constants.
const (
	SingleflightInitiated = "initiated"
	SingleflightShared    = "shared"
)

// Storage operation constants.
const (
	StorageOpPut    = "put"
	StorageOpOpen   = "open"
	StorageOpDelete = "delete"
	StorageOpURL    = "url"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Token verification results.
const (
	TokenValid   = "valid"
	TokenMissing = "missing"
	TokenInvalid = "invalid"
	TokenExpired = "expired"
	TokenRevoked = "revoked"
	TokenError   = "error"
)

// Transcode outcome constants.
const (
	TranscodeReady   = "ready"
	TranscodeFailed  = "failed"
	TranscodeSkipped = "skipped"
)
