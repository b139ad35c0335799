package metrics

import (
	"time"
)

// NopMetrics is a no-op implementation of the Metrics interface.
// Use this when metrics collection is disabled.
type NopMetrics struct{}

var _ Metrics = (*NopMetrics)(nil)

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// Application metrics (no-op)

func (m *NopMetrics) SetAppHeight(height uint64)                   {}
func (m *NopMetrics) IncTxsChecked(result string)                  {}
func (m *NopMetrics) IncTxsDelivered(result string)                {}
func (m *NopMetrics) IncCommits()                                  {}
func (m *NopMetrics) ObserveCommitDuration(duration time.Duration) {}
func (m *NopMetrics) IncQueries(module string)                     {}

// Store metrics (no-op)

func (m *NopMetrics) IncProofsGenerated()                            {}
func (m *NopMetrics) IncPrunes()                                     {}
func (m *NopMetrics) SetPrunedHeight(height uint64)                  {}
func (m *NopMetrics) ObserveSnapshotDuration(duration time.Duration) {}
