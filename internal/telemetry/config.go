package telemetry

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Config holds telemetry settings. The zero value with Enabled false is
// valid and yields an inert instance.
type Config struct {
	// Enabled turns OTLP export on. When false, New returns an inert
	// instance and the global no-op providers stay in place.
	Enabled bool

	// Endpoint is the OTLP collector address as host:port.
	// Default: localhost:4317
	Endpoint string

	// Protocol selects the exporter transport: "grpc" or
	// "http/protobuf". Default: grpc
	Protocol string

	// ServiceName and ServiceVersion identify lexd in the exported
	// resource attributes.
	ServiceName    string
	ServiceVersion string

	// Insecure exports over plaintext. Only allowed for local
	// endpoints; Validate rejects plaintext to anything else.
	Insecure bool

	// TLSSkipVerify disables certificate verification, for collectors
	// behind internal CAs. Ignored when Insecure is set.
	TLSSkipVerify bool

	// SamplingRate is the trace sampling ratio in [0, 1], wrapped in a
	// parent-based sampler so sampled incoming contexts stay sampled.
	// Default: 1.0
	SamplingRate float64

	// MetricsInterval is the periodic export interval for OTEL metrics.
	// Default: 15s
	MetricsInterval time.Duration

	// ShutdownTimeout bounds Shutdown when the caller's context has no
	// deadline. Default: 5s
	ShutdownTimeout time.Duration
}

// ApplyDefaults fills in default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Protocol == "" {
		c.Protocol = "grpc"
	}
	if c.ServiceName == "" {
		c.ServiceName = "lexd"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.1.0"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.MetricsInterval == 0 {
		c.MetricsInterval = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the configuration. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when telemetry is enabled")
	}
	switch c.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("invalid protocol %q: must be grpc or http/protobuf", c.Protocol)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling rate must be in [0, 1], got %g", c.SamplingRate)
	}
	if c.Insecure && !c.isLocalEndpoint() {
		return fmt.Errorf("plaintext export to remote endpoint %q not allowed; enable TLS or use a local collector", c.Endpoint)
	}
	return nil
}

// isLocalEndpoint reports whether the endpoint points at this machine.
func (c *Config) isLocalEndpoint() bool {
	host := c.Endpoint
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	return host == "localhost" || host == "::1" || strings.HasPrefix(host, "127.")
}
