package config

// TracingConfig holds OTLP trace export configuration.
//
// Spans are exported to an OTLP/HTTP collector. An empty Endpoint disables
// export entirely; see internal/observability for the wiring.
type TracingConfig struct {
	// Endpoint is the OTLP HTTP collector address (host:port). Empty disables tracing.
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	// Service is the service name attached to exported spans (default: lectern).
	Service string `mapstructure:"service" json:"service"`
	// Environment is the deployment environment tag (default: dev).
	Environment string `mapstructure:"environment" json:"environment"`
}
