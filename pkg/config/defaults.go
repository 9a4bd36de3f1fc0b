package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyRegisterDefaults(&cfg.Register)
	applyConsoleDefaults(&cfg.Console)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyRegisterDefaults(cfg *RegisterConfig) {
	if cfg.Backing == "" {
		cfg.Backing = "memory"
	}
}

func applyConsoleDefaults(cfg *ConsoleConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "stdio"
	}
}

// GetDefaultConfig returns a Config with all default values applied and a
// sample endpoint table covering one of each tag kind plus an NFC-DEP peer.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Endpoints: []EndpointConfig{
			{Kind: "nfc-dep", NFCID3: "02fe000000000000000a"},
			{Kind: "t1t", NFCID1: "11223344"},
			{Kind: "t2t", NFCID1: "04aabbccddeeff"},
			{Kind: "t3t"},
			{Kind: "t4t"},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
