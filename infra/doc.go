// Package infra holds the adapters around the pipeline core: the zerolog
// logger, Prometheus and InfluxDB sinks, the MQTT command client and the
// Sentry monitor. Adapters depend on core interfaces, never the reverse.
package infra
