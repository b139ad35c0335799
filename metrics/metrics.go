// Package metrics defines the instrumentation surface of the application
// and store layers, with a Prometheus implementation and a no-op fallback.
package metrics

import "time"

// Metrics is the instrumentation interface consumed by the application
// and store layers. Implementations must be safe for concurrent use.
type Metrics interface {
	// Application metrics

	// SetAppHeight records the latest committed application height.
	SetAppHeight(height uint64)

	// IncTxsChecked counts CheckTx calls by result ("ok", "rejected",
	// "unhandled").
	IncTxsChecked(result string)

	// IncTxsDelivered counts DeliverTx calls by result ("ok", "failed",
	// "unhandled").
	IncTxsDelivered(result string)

	// IncCommits counts completed two-level commits.
	IncCommits()

	// ObserveCommitDuration records how long a full commit took.
	ObserveCommitDuration(duration time.Duration)

	// IncQueries counts Query calls by module.
	IncQueries(module string)

	// Store metrics

	// IncProofsGenerated counts merkle proofs produced.
	IncProofsGenerated()

	// IncPrunes counts pruning runs.
	IncPrunes()

	// SetPrunedHeight records the height floor after the last prune.
	SetPrunedHeight(height uint64)

	// ObserveSnapshotDuration records how long a snapshot export took.
	ObserveSnapshotDuration(duration time.Duration)
}
