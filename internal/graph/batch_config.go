package graph

import "time"

// BatchConfig tunes how the writer slices and pushes work at the store.
type BatchConfig struct {
	EntityBatchSize int
	EdgeBatchSize   int

	// MaxConcurrent bounds in-flight batches within one phase.
	MaxConcurrent int

	// MaxRetries is the attempt count per batch for transient failures.
	MaxRetries int
	// RetryBaseDelay doubles per attempt: base, 2x, 4x, ...
	RetryBaseDelay time.Duration

	// BatchTimeout bounds a single batch round trip.
	BatchTimeout time.Duration

	// RatePerSecond caps batch submissions so a large initial ingest does
	// not starve other clients of the store. Zero disables limiting.
	RatePerSecond float64
}

// DefaultBatchConfig returns tuning that works for repos in the
// 10k-100k entity range against a single Neo4j instance.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		EntityBatchSize: 500,
		EdgeBatchSize:   1000,
		MaxConcurrent:   4,
		MaxRetries:      3,
		RetryBaseDelay:  250 * time.Millisecond,
		BatchTimeout:    30 * time.Second,
		RatePerSecond:   50,
	}
}
