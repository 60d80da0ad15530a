package metrics

// Package metrics defines interfaces for recording pipeline metrics. Sinks
// like PromSink and InfluxSink record forecasts, gated dispatch decisions,
// anomalies and generation requests, and can be combined with NewMultiSink.
// The factory helpers return a MultiSink automatically when multiple sinks
// are configured.
