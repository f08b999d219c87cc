// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the application configuration structure
// including server settings, language editions and their mirror endpoints,
// retry and circuit breaker tuning, cache sizing and TTLs, and metrics.
package config
