// Package metrics contains abstractions for emission of metrics generated while serving queries.
// Currently, the only supported metrics output engine is statsd.
//
// Metrics are structured around hooks: a hook interface defines methods invoked by the server,
// forwarder and filter handler at points in a query's lifecycle. Implementations of the hook
// interfaces ship the metrics to a backend; the noop implementations are used when metrics
// reporting is disabled.
package metrics
