package metrics

import "github.com/immansha/renewcast/core/factory"

// Config defines settings for metrics sinks. PrometheusAddr, when set,
// exposes /metrics on that address.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	PrometheusAddr string                 `json:"prometheus_addr" yaml:"prometheus_addr"`
}
